package dataset

import (
	"sort"
	"strconv"
)

// LabelEncoder maps the distinct values of a column to 0..n-1, in sorted order.
type LabelEncoder struct {
	Classes []string
	codes   map[string]int
}

// FitLabelEncoder learns the classes of values.
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sort.Strings(classes)

	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		codes[c] = i
	}
	return &LabelEncoder{Classes: classes, codes: codes}
}

// Transform returns the code of v, or -1 for an unseen value.
func (le *LabelEncoder) Transform(v string) int {
	if code, ok := le.codes[v]; ok {
		return code
	}
	return -1
}

// EncodeColumn adds `<col>_enc` to t holding the label codes of col. It is a no-op when col is absent.
func EncodeColumn(t *Table, col string) *LabelEncoder {
	if !t.Has(col) {
		return nil
	}
	values := make([]string, t.Len())
	for i := range t.Rows {
		values[i] = t.Get(i, col)
	}
	le := FitLabelEncoder(values)
	encCol := col + "_enc"
	t.AddColumn(encCol)
	for i, v := range values {
		t.Set(i, encCol, strconv.Itoa(le.Transform(v)))
	}
	return le
}
