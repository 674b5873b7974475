// Package dataset reads and cleans the CSV datasets (courses, ratings, user profiles)
// the catalog and the recommender are built from.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// Canonical column names.
const (
	ColUserID         = "user_id"
	ColCourseID       = "course_id"
	ColRating         = "rating"
	ColTitle          = "title"
	ColCategory       = "category"
	ColTags           = "tags"
	ColLevel          = "level"
	ColMeta           = "meta"
	ColGender         = "gender"
	ColEducationLevel = "education_level"
	ColSkillLevel     = "skill_level"
)

// DefaultAliases maps normalized header spellings found in the wild to canonical column names.
var DefaultAliases = map[string]string{
	"userid":     ColUserID,
	"courseid":   ColCourseID,
	"categories": ColCategory,
	"education":  ColEducationLevel,
	"skill":      ColSkillLevel,
	"score":      ColRating,
	"stars":      ColRating,
	"rate":       ColRating,
}

// MissingColumnError is returned when a required column is absent from a dataset.
type MissingColumnError struct {
	Name string
}

func (e *MissingColumnError) Error() string {
	return "MissingColumn: " + e.Name
}

// NormalizeHeader trims & lower-cases a header and resolves it through aliases.
func NormalizeHeader(h string, aliases map[string]string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	if canonical, ok := aliases[h]; ok {
		return canonical
	}
	return h
}

// Table is an in-memory CSV dataset with normalized headers.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadTable reads a whole CSV with a header row. The first occurrence wins on duplicate headers.
func ReadTable(r io.Reader, aliases map[string]string) (*Table, error) {
	rdr := gocsv.LazyCSVReader(r)
	if csvRdr, ok := rdr.(*csv.Reader); ok {
		csvRdr.FieldsPerRecord = -1 // ragged rows are padded on read
	}
	records, err := rdr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	if len(records) == 0 {
		return NewTable(nil), nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = NormalizeHeader(h, aliases)
	}
	t := NewTable(header)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadTableFile reads the CSV at path.
func ReadTableFile(path string, aliases map[string]string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dataset")
	}
	defer func() { _ = f.Close() }()
	return ReadTable(f, aliases)
}

func NewTable(header []string) *Table {
	t := &Table{Header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
	return t
}

func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Require returns a MissingColumnError for the first absent column.
func (t *Table) Require(cols ...string) error {
	for _, col := range cols {
		if !t.Has(col) {
			return &MissingColumnError{Name: col}
		}
	}
	return nil
}

// Get returns the trimmed value of col in row i; missing columns and short rows read as "".
func (t *Table) Get(i int, col string) string {
	j, ok := t.index[col]
	if !ok || j >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][j])
}

// Set writes col in row i, adding the column when needed.
func (t *Table) Set(i int, col, val string) {
	j, ok := t.index[col]
	if !ok {
		j = t.AddColumn(col)
	}
	for len(t.Rows[i]) <= j {
		t.Rows[i] = append(t.Rows[i], "")
	}
	t.Rows[i][j] = val
}

// AddColumn appends an empty column and returns its index; existing columns are left untouched.
func (t *Table) AddColumn(col string) int {
	if j, ok := t.index[col]; ok {
		return j
	}
	t.Header = append(t.Header, col)
	j := len(t.Header) - 1
	t.index[col] = j
	return j
}

func (t *Table) Len() int { return len(t.Rows) }

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) {
	rows := t.Rows[:0]
	for i := range t.Rows {
		if keep(i) {
			rows = append(rows, t.Rows[i])
		}
	}
	t.Rows = rows
}

// Write writes the table as CSV, padding short rows.
func (t *Table) Write(w io.Writer) error {
	csvW := gocsv.DefaultCSVWriter(w)
	if err := csvW.Write(t.Header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, row := range t.Rows {
		out := make([]string, len(t.Header))
		copy(out, row)
		if err := csvW.Write(out); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	csvW.Flush()
	return errors.Wrap(csvW.Error(), "flushing csv")
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
