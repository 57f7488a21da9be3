package splice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultProfileValid(t *testing.T) {
	t.Parallel()
	p := DefaultProfile()
	require.NoError(t, p.Validate())

	table, err := p.Table()
	require.NoError(t, err)
	assert.Equal(t, 15, table.Len())
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()

	t.Run("yaml", func(t *testing.T) {
		path := writeProfile(t, "p.yaml", `
anchor: "use crate::log;"
target_prefix: "Response::ok("
helper:
  name: logged_ok
  ident: fn logged_ok
  definition: "\nfn logged_ok() {}\n"
units:
  - name: fetch
    category: read
    path: req.url.clone()
    summary: '"Fetched"'
  - name: store
    category: write
    path: req.key.clone()
    summary: '&format!("Stored {}", req.key)'
`)
		p, err := LoadProfile(path)
		require.NoError(t, err)

		assert.Equal(t, "use crate::log;", p.Anchor)
		assert.Equal(t, "Response::ok(", p.TargetPrefix)
		assert.Equal(t, "logged_ok", p.Helper.Name)
		assert.Equal(t, "\nfn logged_ok() {}\n", p.Helper.Definition)
		assert.Equal(t, "async fn ", p.DeclPrefix) // default kept
		require.Len(t, p.Units, 2)
		assert.Equal(t, UnitEntry{Name: "store", Category: "write", PathExpr: "req.key.clone()",
			SummaryExpr: `&format!("Stored {}", req.key)`}, p.Units[1])
	})

	t.Run("toml", func(t *testing.T) {
		path := writeProfile(t, "p.toml", `
anchor = "use crate::log;"
decl_prefix = "fn "
next_unit_marker = "\n    fn "

[[units]]
name = "fetch"
category = "read"
path = "req.url.clone()"
summary = '"Fetched"'
`)
		p, err := LoadProfile(path)
		require.NoError(t, err)

		assert.Equal(t, "fn ", p.DeclPrefix)
		assert.Equal(t, "\n    fn ", p.NextUnitMarker)
		assert.Equal(t, "success_log", p.Helper.Name) // default kept
		require.Len(t, p.Units, 1)
		assert.Equal(t, `"Fetched"`, p.Units[0].SummaryExpr)
	})

	t.Run("empty_yaml_uses_defaults", func(t *testing.T) {
		p, err := LoadProfile(writeProfile(t, "p.yml", ""))
		require.NoError(t, err)
		assert.Equal(t, DefaultProfile(), p)
	})

	t.Run("yaml_unknown_field", func(t *testing.T) {
		_, err := LoadProfile(writeProfile(t, "p.yaml", "anchr: x\n"))
		require.Error(t, err)
	})

	t.Run("toml_unknown_field", func(t *testing.T) {
		_, err := LoadProfile(writeProfile(t, "p.toml", "anchr = \"x\"\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anchr")
	})

	t.Run("duplicate_units", func(t *testing.T) {
		_, err := LoadProfile(writeProfile(t, "p.yaml", "units:\n  - name: a\n  - name: a\n"))
		require.Error(t, err)
	})

	t.Run("yaml_helper_name_without_definition", func(t *testing.T) {
		_, err := LoadProfile(writeProfile(t, "p.yaml", "helper:\n  name: activity_log\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "activity_log")
	})

	t.Run("unsupported_extension", func(t *testing.T) {
		_, err := LoadProfile(writeProfile(t, "p.json", "{}"))
		require.Error(t, err)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(p *Profile)
	}{
		{"no_anchor", func(p *Profile) { p.Anchor = "" }},
		{"no_helper_name", func(p *Profile) { p.Helper.Name = "" }},
		{"no_helper_ident", func(p *Profile) { p.Helper.Ident = "" }},
		{"ident_not_in_definition", func(p *Profile) { p.Helper.Ident = "fn other" }},
		{"no_decl_prefix", func(p *Profile) { p.DeclPrefix = "" }},
		{"no_next_marker", func(p *Profile) { p.NextUnitMarker = "" }},
		{"no_target", func(p *Profile) { p.TargetPrefix = "" }},
		{"target_matches_helper", func(p *Profile) { p.TargetPrefix = "log(" }},
		{"empty_unit_name", func(p *Profile) { p.Units = append(p.Units, UnitEntry{}) }},
		{"helper_renamed_only", func(p *Profile) {
			p.Helper.Name = "activity_log"
		}},
		{"summary_contains_target", func(p *Profile) {
			p.Units[2].SummaryExpr = "&CallToolResult::success(vec![]).to_string()"
		}},
		{"path_contains_target", func(p *Profile) {
			p.Units[0].PathExpr = "CallToolResult::success(vec![]).path()"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.modify(p)
			assert.Error(t, p.Validate())
		})
	}
}
