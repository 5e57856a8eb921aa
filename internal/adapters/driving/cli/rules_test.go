package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesListCmd_ShowsEmbeddedDefaults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"rules", "list"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Rule set 2024.2")
	assert.Contains(t, buf.String(), "before_filter_deprecation")
	assert.Contains(t, buf.String(), "mass_assignment_create")
}

func TestRulesListCmd_NotConfigured(t *testing.T) {
	oldStore := ruleStore
	ruleStore = nil
	defer func() {
		ruleStore = oldStore
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"rules", "list"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rule store not configured")
}

func TestRulesValidateCmd_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	content := `version = "test.1"

[[rule]]
id = "custom_rule"
pattern = "legacy_call\\("
replacement = "modern_call("
explanation = "legacy_call was removed"
confidence = 0.9
category = "deprecation"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"rules", "validate", path})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "OK: rule set test.1, 1 rules")
}

func TestRulesValidateCmd_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = ["), 0600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"rules", "validate", path})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rule set")
}

func TestRulesValidateCmd_MissingFile(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"rules", "validate", "/nonexistent/rules.toml"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}
