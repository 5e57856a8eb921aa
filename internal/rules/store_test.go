package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

func TestNewStore_EmbeddedDefaults(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)

	rs := s.RuleSet()
	assert.Equal(t, "2024.2", rs.Version)
	assert.NotEmpty(t, rs.Rules)

	// The default set must carry both categories.
	assert.NotEmpty(t, rs.Unsafe())
	_, ok := rs.Lookup("before_filter_deprecation")
	assert.True(t, ok)
}

func TestNewStore_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.toml")
	content := `
version = "test.1"

[[rule]]
id = "custom_rule"
pattern = 'find_by_sql'
replacement = "sanitized query"
explanation = "custom"
confidence = 0.6
category = "deprecation"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s, err := NewStore(path)
	require.NoError(t, err)

	rs := s.RuleSet()
	assert.Equal(t, "test.1", rs.Version)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "custom_rule", rs.Rules[0].ID)
	assert.True(t, rs.Rules[0].Pattern.MatchString("User.find_by_sql(q)"))
}

func TestParse_InvalidPattern(t *testing.T) {
	_, err := Parse([]byte(`
version = "bad"

[[rule]]
id = "broken"
pattern = '(['
confidence = 0.5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestParse_MissingVersion(t *testing.T) {
	_, err := Parse([]byte(`[[rule]]
id = "x"
pattern = 'y'
`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParse_DuplicateID(t *testing.T) {
	_, err := Parse([]byte(`
version = "dup"

[[rule]]
id = "same"
pattern = 'a'

[[rule]]
id = "same"
pattern = 'b'
`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParse_ConfidenceClamped(t *testing.T) {
	rs, err := Parse([]byte(`
version = "clamp"

[[rule]]
id = "no_confidence"
pattern = 'x'
`))
	require.NoError(t, err)
	assert.Equal(t, 0.5, rs.Rules[0].Confidence)
}

func TestParse_UnknownCategoryDefaultsToDeprecation(t *testing.T) {
	rs, err := Parse([]byte(`
version = "cat"

[[rule]]
id = "odd"
pattern = 'x'
confidence = 0.7
category = "mystery"
`))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryDeprecation, rs.Rules[0].Category)
}

func TestReload_KeepsSetOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.toml")
	good := `
version = "v1"

[[rule]]
id = "ok"
pattern = 'x'
confidence = 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(good), 0600))

	s, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version = "), 0600))
	assert.Error(t, s.Reload())

	// Previous set survives a failed reload.
	assert.Equal(t, "v1", s.RuleSet().Version)
}
