// Package pairing matches source documents with their converted XML by
// filename stem.
package pairing

import (
	"strings"

	"kb-auditor/internal/payload"
)

// Kind is the slot a file fills in a pair.
type Kind int

const (
	KindUnsupported Kind = iota
	KindSource
	KindXML
)

// KindOf classifies a filename by extension. Only .docx, .doc and .xml take
// part in pairing.
func KindOf(name string) Kind {
	switch payload.Ext(name) {
	case ".docx", ".doc":
		return KindSource
	case ".xml":
		return KindXML
	default:
		return KindUnsupported
	}
}

// Stem returns name without its extension.
func Stem(name string) string {
	ext := payload.Ext(name)
	return name[:len(name)-len(ext)]
}

// Pair groups the files sharing one stem. Either slot may be empty.
type Pair struct {
	Stem   string
	Source *payload.File
	XML    *payload.File
}

// Ready reports whether both slots are filled.
func (p Pair) Ready() bool {
	return p.Source != nil && p.XML != nil
}

// Files returns the pair's files. It must only be called on a ready pair.
func (p Pair) Files() payload.FilePair {
	return payload.FilePair{Source: *p.Source, XML: *p.XML}
}

// Set is an insertion-ordered collection of pairs keyed by stem. The zero
// value is ready to use. Set is not safe for concurrent use.
type Set struct {
	order []string
	pairs map[string]*Pair
}

// Add places each file in the slot of its stem, creating the pair on first
// sight. Files with unsupported extensions are skipped. A later file with the
// same stem and kind replaces the earlier one. Add returns how many files were
// accepted.
func (s *Set) Add(files ...payload.File) int {
	if s.pairs == nil {
		s.pairs = make(map[string]*Pair)
	}
	accepted := 0
	for _, f := range files {
		kind := KindOf(f.Name)
		if kind == KindUnsupported {
			continue
		}
		stem := Stem(f.Name)
		p, ok := s.pairs[stem]
		if !ok {
			p = &Pair{Stem: stem}
			s.pairs[stem] = p
			s.order = append(s.order, stem)
		}
		if kind == KindSource {
			p.Source = &f
		} else {
			p.XML = &f
		}
		accepted++
	}
	return accepted
}

// Remove drops the pair with the given stem. It reports whether it existed.
func (s *Set) Remove(stem string) bool {
	if _, ok := s.pairs[stem]; !ok {
		return false
	}
	delete(s.pairs, stem)
	for i, st := range s.order {
		if st == stem {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every pair.
func (s *Set) Clear() {
	s.order = nil
	s.pairs = nil
}

// All returns every pair in insertion order.
func (s *Set) All() []Pair {
	out := make([]Pair, 0, len(s.order))
	for _, stem := range s.order {
		out = append(out, *s.pairs[stem])
	}
	return out
}

// Ready returns the complete pairs in insertion order.
func (s *Set) Ready() []Pair {
	var out []Pair
	for _, p := range s.All() {
		if p.Ready() {
			out = append(out, p)
		}
	}
	return out
}

// HasReady reports whether at least one pair is complete.
func (s *Set) HasReady() bool {
	for _, p := range s.pairs {
		if p.Ready() {
			return true
		}
	}
	return false
}

// ReadyFiles returns the files of every complete pair, ready for encoding.
func (s *Set) ReadyFiles() []payload.FilePair {
	ready := s.Ready()
	out := make([]payload.FilePair, len(ready))
	for i, p := range ready {
		out[i] = p.Files()
	}
	return out
}

// IsAllowedReference reports whether name could be used as an ingest reference file.
func IsAllowedReference(name string) bool {
	switch payload.Ext(name) {
	case ".xml", ".txt":
		return true
	}
	return false
}

// DisplayName trims directory components a client may send with a filename.
func DisplayName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
