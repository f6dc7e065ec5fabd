package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Greater(t, c.Len(), 10)

	p, ok := c.Price("geotechnical laboratory", "SOIL", " Atterberg Limits ")
	require.True(t, ok)
	assert.EqualValues(t, 1200, p)

	_, ok = c.Price("Geotechnical Laboratory", "Soil", "Unknown")
	assert.False(t, ok)
}

func TestParseRejectsNegative(t *testing.T) {
	_, err := Parse([]byte("labs:\n  - name: A\n    subcategories:\n      - name: B\n        tests:\n          - name: C\n            price: -1\n"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labs:\n  - name: A\n    subcategories:\n      - name: B\n        tests:\n          - name: C\n            price: 5\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	p, ok := c.Price("A", "B", "C")
	assert.True(t, ok)
	assert.EqualValues(t, 5, p)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	_, ok := c.Price("a", "b", "c")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}
