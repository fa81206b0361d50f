// Package workload produces the traffic a simulation runs: keyword entries to
// store and weighted keyword queries over what has been stored.
package workload

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// bytesPerDocument is the storage cost of one document reference.
const bytesPerDocument = 4

// Entry is one keyword with the documents that contain it and how often it is searched.
type Entry struct {
	Keyword   string
	Documents []string
	Frequency float64
}

// Size returns the storage units a replica of this entry occupies.
func (e Entry) Size() int64 {
	return int64(bytesPerDocument * len(e.Documents))
}

// Dataset is the set of keywords available to the store workload.
type Dataset struct {
	Entries []Entry
}

// Len returns the number of entries.
func (d *Dataset) Len() int {
	return len(d.Entries)
}

// LoadCSV reads a dataset file. See ParseCSV for the format.
func LoadCSV(path string) (*Dataset, error) {
	if path == "" {
		return nil, fmt.Errorf("dataset path must not be empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file

	ds, err := ParseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// ParseCSV reads rows of the form
//
//	keyword,"doc1, doc2, doc3",frequency
//
// A first row whose frequency is not a number is taken as a header. Later
// rows repeating a keyword are ignored.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	ds := &Dataset{}
	seen := make(map[string]bool)
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("row %d: expected 3 columns, got %d", row, len(record))
		}
		freq, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			if row == 0 {
				continue
			}
			return nil, fmt.Errorf("row %d: invalid frequency %q: %w", row, record[2], err)
		}
		if freq < 0 {
			return nil, fmt.Errorf("row %d: frequency must be >= 0, got %v", row, freq)
		}
		kw := strings.TrimSpace(record[0])
		if kw == "" {
			return nil, fmt.Errorf("row %d: empty keyword", row)
		}
		if seen[kw] {
			continue
		}
		seen[kw] = true
		ds.Entries = append(ds.Entries, Entry{
			Keyword:   kw,
			Documents: splitDocuments(record[1]),
			Frequency: freq,
		})
	}
	if len(ds.Entries) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return ds, nil
}

func splitDocuments(field string) []string {
	parts := strings.Split(field, ",")
	docs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			docs = append(docs, p)
		}
	}
	return docs
}

// Synthetic builds a dataset of keywords with Zipf-distributed search
// frequencies. Each keyword lists docs documents drawn from a corpus of the
// given size, biased towards low document numbers so that popular documents
// are shared across many keywords and conjunctive queries have answers.
func Synthetic(rng *rand.Rand, keywords, docs, corpus int) *Dataset {
	docs = min(docs, corpus)
	zipf := rand.NewZipf(rng, 1.2, 1, uint64(corpus-1))
	ds := &Dataset{Entries: make([]Entry, 0, keywords)}
	for i := 0; i < keywords; i++ {
		picked := make(map[uint64]bool, docs)
		documents := make([]string, 0, docs)
		for attempts := 0; len(documents) < docs && attempts < 20*docs; attempts++ {
			d := zipf.Uint64()
			if picked[d] {
				continue
			}
			picked[d] = true
			documents = append(documents, fmt.Sprintf("doc%05d", d))
		}
		ds.Entries = append(ds.Entries, Entry{
			Keyword:   fmt.Sprintf("kw%05d", i),
			Documents: documents,
			Frequency: float64(keywords) / float64(i+1),
		})
	}
	return ds
}
