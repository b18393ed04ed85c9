package placeholder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolver_Cascade(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mweb_test_data.yaml", "source_city: Piraeus\nadults: 2\n")
	writeFile(t, dir, CommonFile, "source_city: Athens\ndestination_city: Naxos\nreturn_trip: false\n")

	r := NewResolver(dir, "MWeb", zaptest.NewLogger(t))

	tests := []struct {
		key  string
		want any
		ok   bool
	}{
		{"<source_city>", "Piraeus", true},
		{"<destination_city>", "Naxos", true},
		{"adults", 2, true},
		{"<return_trip>", false, true},
		{"<coupon>", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := r.Get(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_MissingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, CommonFile, "source_city: Athens\n")

	r := NewResolver(dir, "dweb", zaptest.NewLogger(t))
	require.NoError(t, r.Load())
	v, ok := r.Get("<source_city>")
	assert.True(t, ok)
	assert.Equal(t, "Athens", v)
}

func TestResolver_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ios_test_data.yaml", "source_city: [unclosed\n")

	r := NewResolver(dir, "ios", zaptest.NewLogger(t))
	assert.ErrorContains(t, r.Load(), "failed to parse test data")
	_, ok := r.Get("<source_city>")
	assert.False(t, ok)
}

func TestMapAndClean(t *testing.T) {
	assert.Equal(t, "source_city", Clean(" <source_city> "))
	m := Map{"fare": "450"}
	v, ok := m.Get("<fare>")
	assert.True(t, ok)
	assert.Equal(t, "450", v)
}
