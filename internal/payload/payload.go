// Package payload turns uploaded files into the base64 blobs sent to a model.
package payload

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// File is an uploaded document as received from a client.
type File struct {
	Name string
	// MIMEType is the type reported by the client, if any.
	MIMEType string
	Data     []byte
}

// Blob is a file ready to be sent to a model: base64 data tagged with a MIME
// type and the original filename.
type Blob struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// FilePair is a source document and its converted XML.
type FilePair struct {
	Source File
	XML    File
}

// BlobPair is an encoded FilePair.
type BlobPair struct {
	Source Blob
	XML    Blob
}

// Encode prepares f for a model. DOCX files are reduced to their plain text
// first; everything else is passed through byte for byte.
func Encode(f File) (Blob, error) {
	if IsDocx(f) {
		text, err := ExtractDocxText(f.Data)
		if err != nil {
			return Blob{}, fmt.Errorf("extract text from %s: %w", f.Name, err)
		}
		return Blob{
			Name:     f.Name,
			MIMEType: "text/plain",
			Data:     base64.StdEncoding.EncodeToString([]byte(text)),
		}, nil
	}
	return Blob{
		Name:     f.Name,
		MIMEType: MIMEType(f),
		Data:     base64.StdEncoding.EncodeToString(f.Data),
	}, nil
}

// Decode returns the raw bytes of b.
func Decode(b Blob) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.Name, err)
	}
	return data, nil
}

// DecodeText returns the content of b as UTF-8 text. Invalid sequences are
// replaced rather than rejected, matching how a text decoder treats them.
func DecodeText(b Blob) (string, error) {
	data, err := Decode(b)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}

// EncodePairs encodes every pair concurrently. The result keeps the order of
// pairs regardless of which encoding finishes first.
func EncodePairs(ctx context.Context, pairs []FilePair) ([]BlobPair, error) {
	out := make([]BlobPair, len(pairs))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := Encode(p.Source)
			if err != nil {
				return err
			}
			xml, err := Encode(p.XML)
			if err != nil {
				return err
			}
			out[i] = BlobPair{Source: src, XML: xml}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
