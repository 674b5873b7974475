package recommend

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core/dataset"
)

// Rating is one (user, course, value) observation. Ids are opaque strings.
type Rating struct {
	UserID   string  `json:"user_id"`
	CourseID string  `json:"course_id"`
	Value    float64 `json:"rating"`
}

// LoadRatings reads a ratings CSV. Headers are normalized (`userid`, `courseid`, `score`, `stars`, `rate`);
// a missing id column is a *dataset.MissingColumnError, a missing rating column means an implicit rating of 1,
// and rows with an empty id are dropped.
func LoadRatings(r io.Reader) ([]Rating, error) {
	tbl, err := dataset.ReadTable(r, dataset.DefaultAliases)
	if err != nil {
		return nil, err
	}
	if err = tbl.Require(dataset.ColUserID, dataset.ColCourseID); err != nil {
		return nil, err
	}
	hasRating := tbl.Has(dataset.ColRating)

	ratings := make([]Rating, 0, tbl.Len())
	for i := range tbl.Rows {
		uid, cid := tbl.Get(i, dataset.ColUserID), tbl.Get(i, dataset.ColCourseID)
		if uid == "" || cid == "" {
			continue
		}
		value := 1.0
		if hasRating {
			raw := tbl.Get(i, dataset.ColRating)
			if value, err = dataset.ParseRating(raw); err != nil {
				return nil, errors.Errorf("ratings row %d: invalid rating %q", i+1, raw)
			}
		}
		ratings = append(ratings, Rating{UserID: NormalizeID(uid), CourseID: NormalizeID(cid), Value: value})
	}
	return ratings, nil
}

// LoadRatingsFile reads the ratings CSV at path.
func LoadRatingsFile(path string) ([]Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening ratings")
	}
	defer func() { _ = f.Close() }()
	return LoadRatings(f)
}

// NormalizeID stringifies float-looking integer ids ("7.0" -> "7") the way spreadsheet exports write them.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasSuffix(id, ".0") {
		if _, err := strconv.Atoi(strings.TrimSuffix(id, ".0")); err == nil {
			return strings.TrimSuffix(id, ".0")
		}
	}
	return id
}

// compareIDs orders ids numerically when both are integers, integers first, otherwise lexically.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
