package splice

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Profile groups the markers, helper and unit table for one kind of target file.
type Profile struct {
	// Anchor is the line the helper definition is inserted after.
	Anchor string `yaml:"anchor" toml:"anchor"`
	// Helper is the wrapper definition injected once per file.
	Helper Helper `yaml:"helper" toml:"helper"`
	// DeclPrefix precedes a unit name in its declaration.
	DeclPrefix string `yaml:"decl_prefix" toml:"decl_prefix"`
	// NextUnitMarker begins any sibling declaration.
	NextUnitMarker string `yaml:"next_unit_marker" toml:"next_unit_marker"`
	// TargetPrefix is the call expression (with its opening parenthesis) that is wrapped.
	TargetPrefix string `yaml:"target_prefix" toml:"target_prefix"`
	// Units lists the metadata entries, processed in order.
	Units []UnitEntry `yaml:"units" toml:"units"`
}

const defaultHelperDefinition = `

fn success_log(
    tool: &str,
    category: &str,
    path: Option<&str>,
    summary: &str,
    contents: Vec<Content>,
) -> CallToolResult {
    crate::activity::log_activity(tool, category, path, summary);
    CallToolResult::success(contents)
}
`

// DefaultProfile returns the profile that routes the tool server's successful results through activity logging.
func DefaultProfile() *Profile {
	return &Profile{
		Anchor: "use std::sync::Arc;",
		Helper: Helper{
			Name:       "success_log",
			Ident:      "fn success_log",
			Definition: defaultHelperDefinition,
		},
		DeclPrefix:     "async fn ",
		NextUnitMarker: "async fn ",
		TargetPrefix:   "CallToolResult::success(",
		Units:          DefaultToolTable(),
	}
}

// LoadProfile reads a YAML (.yaml, .yml) or TOML (.toml) profile. Fields that are not set keep
// the DefaultProfile values, and an empty unit list keeps the default table.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	p.Units = nil

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile failed: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, p)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		} else if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown profile keys: %v", path, undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format %q, expected .yaml, .yml or .toml", ext)
	}

	if len(p.Units) == 0 {
		p.Units = DefaultToolTable()
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the markers required for a pass are present.
func (p *Profile) Validate() error {
	if p.Anchor == "" {
		return errors.New("profile anchor is required")
	} else if p.Helper.Name == "" || p.Helper.Definition == "" {
		return errors.New("profile helper name and definition are required")
	} else if p.Helper.Ident == "" {
		return errors.New("profile helper ident is required to detect a prior injection")
	} else if !strings.Contains(p.Helper.Definition, p.Helper.Ident) {
		return fmt.Errorf("helper definition does not contain its ident %q", p.Helper.Ident)
	} else if p.DeclPrefix == "" || p.NextUnitMarker == "" {
		return errors.New("profile decl_prefix and next_unit_marker are required")
	} else if p.TargetPrefix == "" {
		return errors.New("profile target_prefix is required")
	} else if !strings.Contains(p.Helper.Definition, p.Helper.Name+"(") {
		return fmt.Errorf("helper definition does not define %q", p.Helper.Name)
	} else if strings.Contains(p.Helper.Name+"(", p.TargetPrefix) {
		return fmt.Errorf("target prefix %q would match rewritten call sites", p.TargetPrefix)
	}
	// injected arguments must not contain the target, a later pass would wrap them again
	for _, u := range p.Units {
		if strings.Contains(u.PathExpr, p.TargetPrefix) || strings.Contains(u.SummaryExpr, p.TargetPrefix) {
			return fmt.Errorf("unit %s arguments contain target prefix %q", u.Name, p.TargetPrefix)
		}
	}
	_, err := NewTable(p.Units...)
	return err
}

// Table builds the immutable unit table.
func (p *Profile) Table() (*Table, error) {
	return NewTable(slices.Clone(p.Units)...)
}
