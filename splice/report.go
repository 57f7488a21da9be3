package splice

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

var (
	diffAddColor    = color.New(color.FgGreen)
	diffRemoveColor = color.New(color.FgRed)
	diffHunkColor   = color.New(color.FgCyan)
	diffHeaderColor = color.New(color.Bold)
)

// UnifiedDiff renders the change between before and after, empty when the texts are equal.
func UnifiedDiff(path, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  2,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// WriteColorDiff writes a unified diff, colouring lines when color output is enabled.
func WriteColorDiff(w io.Writer, diff string) error {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			_, err = diffHeaderColor.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			_, err = diffHunkColor.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			_, err = diffAddColor.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			_, err = diffRemoveColor.Fprint(w, line)
		default:
			_, err = io.WriteString(w, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteReport writes a per-unit breakdown of a pass.
func WriteReport(w io.Writer, r *Report) error {
	if _, err := fmt.Fprintf(w, "%s: %s\n", r.Path, r.Summary()); err != nil {
		return err
	}
	for _, u := range r.Units {
		var err error
		if len(u.Lines) > 0 {
			_, err = fmt.Fprintf(w, "  %-28s %-9s lines %v\n", u.Name, u.Status, u.Lines)
		} else {
			_, err = fmt.Fprintf(w, "  %-28s %s\n", u.Name, u.Status)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
