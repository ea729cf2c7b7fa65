// Package payloadtest builds documents for tests.
package payloadtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"strings"
)

const (
	transitional = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	strict       = "http://purl.oclc.org/ooxml/wordprocessingml/main"
)

// Docx returns a minimal Word document with one paragraph per argument. A
// paragraph may contain "\t" which is written as a w:tab element.
func Docx(paragraphs ...string) []byte {
	return pack(transitional, "", paragraphBody(paragraphs))
}

// StrictDocx is Docx using the strict OOXML namespace.
func StrictDocx(paragraphs ...string) []byte {
	return pack(strict, "", paragraphBody(paragraphs))
}

// TextBoxDocx returns a document whose single paragraph holds text followed by
// a text box. Like Word, the box is written twice inside mc:AlternateContent:
// once as a drawing in mc:Choice and once as VML in mc:Fallback.
func TextBoxDocx(text, box string) []byte {
	var inner strings.Builder
	inner.WriteString(`<w:txbxContent><w:p><w:r><w:t>`)
	_ = xml.EscapeText(&inner, []byte(box))
	inner.WriteString(`</w:t></w:r></w:p></w:txbxContent>`)

	var body strings.Builder
	body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
	_ = xml.EscapeText(&body, []byte(text))
	body.WriteString(`</w:t></w:r><w:r><mc:AlternateContent>`)
	body.WriteString(`<mc:Choice Requires="wps"><w:drawing><wp:anchor><a:graphic><a:graphicData><wps:wsp><wps:txbx>`)
	body.WriteString(inner.String())
	body.WriteString(`</wps:txbx></wps:wsp></a:graphicData></a:graphic></wp:anchor></w:drawing></mc:Choice>`)
	body.WriteString(`<mc:Fallback><w:pict><v:shape><v:textbox>`)
	body.WriteString(inner.String())
	body.WriteString(`</v:textbox></v:shape></w:pict></mc:Fallback>`)
	body.WriteString(`</mc:AlternateContent></w:r></w:p>`)

	extra := ` xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape"` +
		` xmlns:v="urn:schemas-microsoft-com:vml"` +
		` mc:Ignorable="wps"`
	return pack(transitional, extra, body.String())
}

func paragraphBody(paragraphs []string) string {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:pPr><w:pStyle w:val="P0"/><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:rPr><w:b/></w:rPr>`)
		for i, seg := range strings.Split(p, "\t") {
			if i > 0 {
				body.WriteString(`<w:tab/>`)
			}
			body.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(&body, []byte(seg))
			body.WriteString(`</w:t>`)
		}
		body.WriteString(`</w:r></w:p>`)
	}
	return body.String()
}

func pack(namespace, extraAttrs, body string) []byte {
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="` + namespace + `"` + extraAttrs + `><w:body>` +
		body +
		`<w:sectPr/></w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   doc,
	}
	for _, name := range []string{"[Content_Types].xml", "word/document.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
