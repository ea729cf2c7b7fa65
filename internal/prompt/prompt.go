// Package prompt builds provider-agnostic model requests for the three
// workbench modes.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"kb-auditor/internal/payload"
)

// Mode selects what the model is asked to do.
type Mode string

const (
	ModeAudit  Mode = "audit"
	ModeIngest Mode = "ingest"
	ModeUpdate Mode = "update"
)

// ErrUnknownMode is returned for a mode other than audit, ingest or update.
var ErrUnknownMode = errors.New("unknown mode")

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAudit, ModeIngest, ModeUpdate:
		return m, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// Part is one element of the structured content list: either Text or Blob is set.
type Part struct {
	Text string
	Blob *payload.Blob
}

// Inputs carries the mode-specific material.
type Inputs struct {
	Pairs       []payload.BlobPair
	Reference   *payload.Blob
	Instruction string
}

// Request is a built model request. It is not modified after Build returns.
type Request struct {
	Mode              Mode
	Model             string
	SystemInstruction string
	Parts             []Part
}

// Build assembles the request for mode from the current knowledge base text.
func Build(knowledgeBase string, mode Mode, model string, in Inputs) (Request, error) {
	req := Request{
		Mode:              mode,
		Model:             model,
		SystemInstruction: SystemInstruction(knowledgeBase),
	}
	switch mode {
	case ModeAudit:
		req.Parts = append(req.Parts, Part{Text: "/audit\n\nPlease audit the following conversion pairs against the Knowledge Base:"})
		for i, p := range in.Pairs {
			src, xml := p.Source, p.XML
			req.Parts = append(req.Parts,
				Part{Text: fmt.Sprintf("\n\n=== PAIR %d ===\n--- SOURCE DOCX (%s) ---", i+1, src.Name)},
				Part{Blob: &src},
				Part{Text: fmt.Sprintf("\n--- CONVERTED XML (%s) ---", xml.Name)},
				Part{Blob: &xml},
			)
		}
	case ModeIngest:
		if in.Reference == nil {
			return Request{}, fmt.Errorf("ingest requires a reference file")
		}
		ref := *in.Reference
		req.Parts = append(req.Parts,
			Part{Text: fmt.Sprintf("/ingest\n\n=== REFERENCE XML (%s) ===", ref.Name)},
			Part{Blob: &ref},
		)
	case ModeUpdate:
		req.Parts = append(req.Parts, Part{Text: "/update " + in.Instruction})
	default:
		return Request{}, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
	return req, nil
}

// Flatten renders the request parts as a single text prompt for providers that
// only take plain text. Blobs are decoded back to UTF-8 and each text label is
// followed by a newline when more content follows it.
func Flatten(req Request) (string, error) {
	var sb strings.Builder
	for i, p := range req.Parts {
		if p.Blob != nil {
			text, err := payload.DecodeText(*p.Blob)
			if err != nil {
				return "", err
			}
			sb.WriteString(text)
			continue
		}
		sb.WriteString(p.Text)
		if i < len(req.Parts)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
