package payload

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	wordNamespace       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	strictWordNamespace = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	compatNamespace     = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

var errNoDocument = errors.New("word/document.xml not found")

// ExtractDocxText returns the raw text of a .docx file. Paragraphs are
// separated by a blank line; tabs and line breaks are kept; styling, tables
// structure, deleted revisions and field codes are dropped. Both the
// transitional and the strict WordprocessingML namespaces are read. Of an
// mc:AlternateContent block only the mc:Fallback branch is read, so text boxes
// appear once.
func ExtractDocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document part: %w", err)
		}
		defer rc.Close()
		return documentText(rc)
	}
	return "", errNoDocument
}

func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	runDepth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("parse document part: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == compatNamespace && t.Name.Local == "Choice" {
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("parse document part: %w", err)
				}
				continue
			}
			if !isWord(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "r":
				runDepth++
			case "t":
				inText = true
			case "tab":
				// w:tab also defines tab stops inside paragraph properties.
				if runDepth > 0 {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if runDepth > 0 {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if !isWord(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "r":
				runDepth--
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}

func isWord(n xml.Name) bool {
	return n.Space == wordNamespace || n.Space == strictWordNamespace
}
