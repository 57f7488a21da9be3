package splice

import (
	"fmt"
	"log"
	"strings"
)

// UnitStatus describes what a pass did to a single unit.
type UnitStatus int

const (
	// UnitUntouched means the unit was found but contained no target call.
	UnitUntouched UnitStatus = iota
	// UnitRewritten means at least one call site was routed through the helper.
	UnitRewritten
	// UnitSkipped means the unit signature was not found in the text.
	UnitSkipped
)

func (s UnitStatus) String() string {
	switch s {
	case UnitUntouched:
		return "untouched"
	case UnitRewritten:
		return "rewritten"
	case UnitSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("UnitStatus(%d)", int(s))
	}
}

// UnitResult records the outcome for one table entry.
type UnitResult struct {
	Name   string
	Status UnitStatus
	// Lines are the 1-based lines of rewritten call sites, as of the moment the unit was rewritten.
	Lines []int
}

// Report summarizes a single pass over one text.
type Report struct {
	Path           string
	HelperInjected bool
	Units          []UnitResult
	Before, After  Fingerprint
}

// Changed reports if the pass produced different text.
func (r *Report) Changed() bool {
	return r.Before != r.After
}

// RewriteCount returns the total number of rewritten call sites.
func (r *Report) RewriteCount() (count int) {
	for _, u := range r.Units {
		count += len(u.Lines)
	}
	return
}

// Skipped returns the names of units whose signature was not found.
func (r *Report) Skipped() []string {
	var names []string
	for _, u := range r.Units {
		if u.Status == UnitSkipped {
			names = append(names, u.Name)
		}
	}
	return names
}

// Summary is a single line description suitable for logging.
func (r *Report) Summary() string {
	return fmt.Sprintf("helper=%v rewrites=%d skipped=%d %s -> %s",
		r.HelperInjected, r.RewriteCount(), len(r.Skipped()), r.Before, r.After)
}

// Patcher applies one profile to source texts. It holds no per-text state and may be shared.
type Patcher struct {
	anchor   string
	helper   Helper
	table    *Table
	locator  Locator
	rewriter Rewriter
}

// NewPatcher validates the profile and builds its table once.
func NewPatcher(profile *Profile) (*Patcher, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	table, err := profile.Table()
	if err != nil {
		return nil, err
	}
	return &Patcher{
		anchor: profile.Anchor,
		helper: profile.Helper,
		table:  table,
		locator: Locator{
			DeclPrefix:     profile.DeclPrefix,
			NextUnitMarker: profile.NextUnitMarker,
		},
		rewriter: Rewriter{
			TargetPrefix: profile.TargetPrefix,
			HelperName:   profile.Helper.Name,
		},
	}, nil
}

// Table returns the unit table used by the patcher.
func (p *Patcher) Table() *Table {
	return p.table
}

// Apply injects the helper and rewrites each table unit in order. On error the input text is
// returned unchanged and must not be stored.
func (p *Patcher) Apply(text string) (string, *Report, error) {
	report := &Report{Before: FingerprintOf(text)}

	out, injected, err := InjectHelper(text, p.helper, p.anchor)
	if err != nil {
		return text, nil, err
	}
	report.HelperInjected = injected

	for _, entry := range p.table.Entries() {
		// each unit is located against the current text, earlier rewrites shift offsets
		span, err := p.locator.Locate(out, entry.Name)
		if IsSkippableError(err) {
			log.Printf("WARN: Skipping unit %s: %v", entry.Name, err)
			report.Units = append(report.Units, UnitResult{Name: entry.Name, Status: UnitSkipped})
			continue
		} else if err != nil {
			return text, nil, err
		}

		var sites []int
		out, sites, err = p.rewriter.Rewrite(out, span, entry)
		if err != nil {
			return text, nil, err
		}
		result := UnitResult{Name: entry.Name, Status: UnitUntouched}
		if len(sites) > 0 {
			result.Status = UnitRewritten
			result.Lines = make([]int, len(sites))
			for i, off := range sites {
				result.Lines[i] = lineOf(out, off)
			}
		}
		report.Units = append(report.Units, result)
	}

	report.After = FingerprintOf(out)
	return out, report, nil
}

func lineOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}
