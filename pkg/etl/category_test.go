package etl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mortality-signals/signalsx/pkg/etl"
)

func TestClassify(t *testing.T) {
	categories := etl.DefaultCategories()

	category, mapped := categories.Classify("Malaria")
	assert.True(t, mapped)
	assert.Equal(t, "Communicable", category)

	category, mapped = categories.Classify("Self-harm")
	assert.True(t, mapped)
	assert.Equal(t, "Injury", category)

	category, mapped = categories.Classify("Unknown Disease")
	assert.False(t, mapped)
	assert.Equal(t, etl.DefaultCategory, category)
}

func TestLoadCategories_EmptyPath(t *testing.T) {
	categories, err := etl.LoadCategories("")
	require.NoError(t, err)
	assert.Equal(t, etl.DefaultCategories(), categories)
}

func TestLoadCategories_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Unknown Disease":"NCD","Malaria":"Other"}`), 0o600))

	categories, err := etl.LoadCategories(path)
	require.NoError(t, err)

	category, mapped := categories.Classify("Unknown Disease")
	assert.True(t, mapped)
	assert.Equal(t, "NCD", category)

	// Overrides win on conflict with the built-in mapping
	category, _ = categories.Classify("Malaria")
	assert.Equal(t, "Other", category)

	// Untouched entries survive the merge
	category, _ = categories.Classify("Tuberculosis")
	assert.Equal(t, "Communicable", category)
}

func TestLoadCategories_BadFile(t *testing.T) {
	_, err := etl.LoadCategories(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err = etl.LoadCategories(path)
	require.Error(t, err)
}
