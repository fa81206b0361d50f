package workload

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_HeaderAndQuotedDocuments(t *testing.T) {
	in := `keyword,documents,frequency
apple,"d1, d2, d3",12
banana,"d2",3
`
	ds, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	assert.Equal(t, "apple", ds.Entries[0].Keyword)
	assert.Equal(t, []string{"d1", "d2", "d3"}, ds.Entries[0].Documents)
	assert.Equal(t, 12.0, ds.Entries[0].Frequency)
	assert.Equal(t, int64(12), ds.Entries[0].Size())
	assert.Equal(t, []string{"d2"}, ds.Entries[1].Documents)
}

func TestParseCSV_NoHeader(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("apple,\"d1\",1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestParseCSV_DuplicateKeywordKeepsFirst(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("a,\"d1\",1\na,\"d2\",5\n"))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, []string{"d1"}, ds.Entries[0].Documents)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"header only", "keyword,documents,frequency\n"},
		{"too few columns", "a,b\n"},
		{"bad frequency after header", "k,d,f\na,\"d1\",x\n"},
		{"negative frequency", "a,\"d1\",-1\n"},
		{"empty keyword", " ,\"d1\",1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tc.in))
			assert.Error(t, err)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,\"d1, d2\",2\n"), 0644))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	_, err = LoadCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
	_, err = LoadCSV("")
	assert.Error(t, err)
}

func TestSynthetic(t *testing.T) {
	ds := Synthetic(rand.New(rand.NewSource(1)), 50, 10, 200)
	require.Equal(t, 50, ds.Len())

	keywords := make(map[string]bool)
	for i, e := range ds.Entries {
		assert.False(t, keywords[e.Keyword], "duplicate keyword %s", e.Keyword)
		keywords[e.Keyword] = true
		assert.NotEmpty(t, e.Documents)
		assert.LessOrEqual(t, len(e.Documents), 10)
		docs := make(map[string]bool)
		for _, d := range e.Documents {
			assert.False(t, docs[d], "entry %d repeats %s", i, d)
			docs[d] = true
		}
		if i > 0 {
			assert.Less(t, e.Frequency, ds.Entries[i-1].Frequency)
		}
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	a := Synthetic(rand.New(rand.NewSource(7)), 20, 5, 100)
	b := Synthetic(rand.New(rand.NewSource(7)), 20, 5, 100)
	assert.Equal(t, a, b)
}
