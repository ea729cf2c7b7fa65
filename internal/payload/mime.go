package payload

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DocxMIMEType is the media type of Word OOXML documents.
const DocxMIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var mimeByExt = map[string]string{
	".xml":  "text/xml",
	".docx": DocxMIMEType,
	".doc":  "application/msword",
	".txt":  "text/plain",
}

const octetStream = "application/octet-stream"

// MIMEType returns the client-supplied type of f when it is specific, then a
// type derived from the extension, then one sniffed from the content.
func MIMEType(f File) string {
	if f.MIMEType != "" && f.MIMEType != octetStream {
		return f.MIMEType
	}
	if t, ok := mimeByExt[Ext(f.Name)]; ok {
		return t
	}
	if len(f.Data) == 0 {
		return octetStream
	}
	t, _, _ := strings.Cut(mimetype.Detect(f.Data).String(), ";")
	return t
}

// IsDocx reports whether f is a Word OOXML document.
func IsDocx(f File) bool {
	return Ext(f.Name) == ".docx" || f.MIMEType == DocxMIMEType
}

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
