package splice

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnitNotFound indicates a unit signature did not match, the unit should be skipped.
var ErrUnitNotFound = errors.New("unit signature not found")

// IsSkippableError returns true if the error should skip the unit rather than fail the pass.
func IsSkippableError(err error) bool {
	return errors.Is(err, ErrUnitNotFound)
}

// Span is a half-open byte range [Start, End) into a text snapshot.
// A Span is only valid for the exact text it was located in.
type Span struct {
	Start int
	End   int
}

func (s Span) validFor(text string) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End <= len(text)
}

// Locator finds unit bodies using textual markers instead of parsing.
//
// The body starts right after the opening brace of `<DeclPrefix><name>(...) {` and ends at the next
// NextUnitMarker (or the end of text). Nested braces are not tracked, so the span may include code
// trailing the real closing brace up to the next sibling declaration.
type Locator struct {
	// DeclPrefix precedes the unit name in its declaration, for example "async fn ".
	DeclPrefix string
	// NextUnitMarker begins any sibling declaration and terminates the span.
	NextUnitMarker string
}

// Locate returns the body span of unitName within text.
func (l Locator) Locate(text, unitName string) (Span, error) {
	if unitName == "" {
		return Span{}, fmt.Errorf("%w: empty unit name", ErrUnitNotFound)
	}
	loc := l.signaturePattern(unitName).FindStringIndex(text)
	if loc == nil {
		return Span{}, fmt.Errorf("%w: %s", ErrUnitNotFound, unitName)
	}

	start := loc[1]
	end := len(text)
	if l.NextUnitMarker != "" {
		if i := strings.Index(text[start:], l.NextUnitMarker); i >= 0 {
			end = start + i
		}
	}
	return Span{Start: start, End: end}, nil
}

func (l Locator) signaturePattern(unitName string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(l.DeclPrefix+unitName) + `\([^{]+\{`)
}
