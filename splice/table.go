package splice

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
)

// UnitEntry is the per-unit metadata injected into rewritten call sites.
type UnitEntry struct {
	// Name is the unit (function) name as it appears in its declaration.
	Name string `yaml:"name" toml:"name" msgpack:"name"`
	// Category is an opaque classification, for example "read", "write" or "delete".
	Category string `yaml:"category" toml:"category" msgpack:"category"`
	// PathExpr is a source snippet copied verbatim into Some(&...).
	PathExpr string `yaml:"path" toml:"path" msgpack:"path"`
	// SummaryExpr is a source snippet copied verbatim as the summary argument.
	SummaryExpr string `yaml:"summary" toml:"summary" msgpack:"summary"`
}

// Table is an immutable, ordered mapping from unit name to UnitEntry.
type Table struct {
	entries []UnitEntry
	index   map[string]int
}

// NewTable builds a Table preserving the order of entries. Names must be non-empty and unique.
func NewTable(entries ...UnitEntry) (*Table, error) {
	names := make([]string, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("table entry %d has no unit name", i)
		}
		names[i] = e.Name
	}
	counts := bulk.SliceToCounts(names)
	index := make(map[string]int, len(entries))
	for i, name := range names {
		if counts[name] > 1 {
			return nil, fmt.Errorf("duplicate table entry for unit %q", name)
		}
		index[name] = i
	}
	return &Table{
		entries: slices.Clone(entries),
		index:   index,
	}, nil
}

// Lookup returns the entry registered for name. A missing name is not an error.
func (t *Table) Lookup(name string) (UnitEntry, bool) {
	if i, ok := t.index[name]; ok {
		return t.entries[i], true
	}
	return UnitEntry{}, false
}

// Entries returns the entries in registration order.
func (t *Table) Entries() []UnitEntry {
	return slices.Clone(t.entries)
}

// Len returns the number of registered units.
func (t *Table) Len() int {
	return len(t.entries)
}

// DefaultToolTable returns the entries for the file tool server's handlers.
func DefaultToolTable() []UnitEntry {
	return []UnitEntry{
		{"list_directory", "read", "args.path.clone()", `"Listed directory items"`},
		{"list_directory_recursive", "read", "args.path.clone()", `"Listed directory recursively"`},
		{"read_file", "read", "args.path.clone()", `"Read file contents"`},
		{"write_file", "write", "args.path.clone()", `&format!("Wrote file: {}", args.path)`},
		{"search_files", "read", "args.pattern.clone()", `"Searched files"`},
		{"grep_content", "read", "args.root_path.clone()", `&format!("Grepped for {}", args.pattern)`},
		{"read_lines", "read", "args.path.clone()", `"Read file lines"`},
		{"move_file", "delete", "args.source.clone()", `&format!("Moved to {}", args.destination)`},
		{"delete_file", "delete", "args.path.clone()", `"Deleted file/dir"`},
		{"copy_file", "write", "args.destination.clone()", `&format!("Copied from {}", args.source)`},
		{"get_file_info", "read", "args.path.clone()", `"Read file metadata"`},
		{"batch_read", "read", `format!("{} paths", args.paths.len())`, `"Batch read files"`},
		{"zip_files", "write", "args.output_path.clone()", `"Created zip archive"`},
		{"unzip_files", "write", "args.destination.clone()", `"Extracted zip archive"`},
		{"patch_file", "write", "args.path.clone()", `"Patched file contents"`},
	}
}
