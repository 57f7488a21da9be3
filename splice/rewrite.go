package splice

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDelimiterImbalance indicates a rewrite changed the bracket balance of a span.
	ErrDelimiterImbalance = errors.New("rewrite changed delimiter balance")
	// ErrInvalidSpan indicates a span does not fit the text it was applied to.
	ErrInvalidSpan = errors.New("span out of range")
)

// Rewriter substitutes a target call prefix with a call to the injected helper.
//
// Each rewrite must keep the bracket balance of its span. Brackets are counted as plain bytes,
// string literals included, so a summary such as "Done :)" is rejected with ErrDelimiterImbalance.
type Rewriter struct {
	// TargetPrefix is the call being wrapped, including its opening parenthesis.
	TargetPrefix string
	// HelperName is the function rewritten call sites are routed through.
	HelperName string
}

// CallPrefix returns the replacement text for entry. The original call's arguments follow it unchanged.
func (r Rewriter) CallPrefix(entry UnitEntry) string {
	return r.HelperName + `("` + entry.Name + `", "` + entry.Category + `", Some(&` + entry.PathExpr + `), ` +
		entry.SummaryExpr + ", "
}

// Rewrite replaces every TargetPrefix within span and returns the new text along with the offsets,
// relative to the returned text, where each helper call begins. Offsets and spans computed against
// the input text are invalid once anything was replaced.
func (r Rewriter) Rewrite(text string, span Span, entry UnitEntry) (string, []int, error) {
	if !span.validFor(text) {
		return text, nil, fmt.Errorf("%w: [%d,%d) in %d bytes", ErrInvalidSpan, span.Start, span.End, len(text))
	} else if r.TargetPrefix == "" {
		return text, nil, nil
	}

	original := text[span.Start:span.End]
	replacement := r.CallPrefix(entry)
	var sb strings.Builder
	var sites []int
	rest := original
	for {
		i := strings.Index(rest, r.TargetPrefix)
		if i < 0 {
			break
		}
		sb.WriteString(rest[:i])
		sites = append(sites, span.Start+sb.Len())
		sb.WriteString(replacement)
		rest = rest[i+len(r.TargetPrefix):] // resume after the consumed prefix, never inside the replacement
	}
	if len(sites) == 0 {
		return text, nil, nil
	}
	sb.WriteString(rest)
	rewritten := sb.String()

	if before, after := delimiterBalance(original), delimiterBalance(rewritten); before != after {
		return text, nil, fmt.Errorf("%w in unit %s: %v became %v", ErrDelimiterImbalance, entry.Name, before, after)
	}
	return text[:span.Start] + rewritten + text[span.End:], sites, nil
}

// balance holds open minus close counts for (), [] and {}.
type balance [3]int

func (b balance) String() string {
	return fmt.Sprintf("()%+d []%+d {}%+d", b[0], b[1], b[2])
}

func delimiterBalance(s string) balance {
	var b balance
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			b[0]++
		case ')':
			b[0]--
		case '[':
			b[1]++
		case ']':
			b[1]--
		case '{':
			b[2]++
		case '}':
			b[2]--
		}
	}
	return b
}
