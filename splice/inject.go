package splice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMarkerNotFound indicates the helper anchor is absent, the pass must not write anything.
var ErrMarkerNotFound = errors.New("anchor marker not found")

// Helper describes the wrapper function that rewritten call sites are routed through.
type Helper struct {
	// Name is the identifier used at rewritten call sites.
	Name string `yaml:"name" toml:"name"`
	// Ident is a fragment that only occurs once the helper is defined, used to detect a prior injection.
	Ident string `yaml:"ident" toml:"ident"`
	// Definition is inserted verbatim directly after the anchor.
	Definition string `yaml:"definition" toml:"definition"`
}

// InjectHelper inserts the helper definition after the first occurrence of anchor.
// The returned bool is false when the text already defines the helper and was left unchanged.
func InjectHelper(text string, helper Helper, anchor string) (string, bool, error) {
	idx := -1
	if anchor != "" {
		idx = strings.Index(text, anchor)
	}
	if idx < 0 {
		return text, false, fmt.Errorf("%w: %q", ErrMarkerNotFound, anchor)
	} else if helper.Ident != "" && strings.Contains(text, helper.Ident) {
		return text, false, nil
	}

	insertAt := idx + len(anchor)
	var sb strings.Builder
	sb.Grow(len(text) + len(helper.Definition))
	sb.WriteString(text[:insertAt])
	sb.WriteString(helper.Definition)
	sb.WriteString(text[insertAt:])
	return sb.String(), true, nil
}
