package ontology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phetools-curation-server/internal/domain"
)

const (
	initialTermCapacity = 20000   // hp.obo has ~19k classes
	scannerBufferSize   = 1 << 20 // 1 MB
)

// LoadOBO reads an hp.obo file from disk.
func LoadOBO(path string, opts ...GraphOption) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ontology file: %w", err)
	}
	defer f.Close()
	return ParseOBO(f, opts...)
}

// ParseOBO parses an OBO 1.4 ontology. Only [Term] stanzas are read; is_a edges
// form the hierarchy.
func ParseOBO(r io.Reader, opts ...GraphOption) (*Graph, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scannerBufferSize), scannerBufferSize)

	terms := make([]Term, 0, initialTermCapacity)
	var version string
	inHeader := true
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "[Term]":
			inHeader = false
			terms = append(terms, parseTerm(scanner))
		case strings.HasPrefix(line, "["):
			inHeader = false
		case inHeader:
			if key, val, ok := strings.Cut(line, ": "); ok && key == "data-version" {
				version = strings.TrimPrefix(val, "hp/releases/")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ontology: %w", err)
	}

	if version != "" {
		opts = append([]GraphOption{WithVersion(version)}, opts...)
	}
	return NewGraph(terms, opts...)
}

func parseTerm(scanner *bufio.Scanner) Term {
	var t Term
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		key, val, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "id":
			t.ID = domain.TermID(val)
		case "name":
			t.Name = val
		case "alt_id":
			t.AltIDs = append(t.AltIDs, domain.TermID(val))
		case "is_a":
			// "HP:0000118 ! Phenotypic abnormality"
			id, _, _ := strings.Cut(val, " ! ")
			t.Parents = append(t.Parents, domain.TermID(strings.TrimSpace(id)))
		case "is_obsolete":
			t.Obsolete = val == "true"
		case "replaced_by":
			t.ReplacedBy = domain.TermID(val)
		}
	}
	return t
}
