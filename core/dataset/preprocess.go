package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Files read & written by PreprocessDir.
const (
	CoursesFile      = "courses.csv"
	RatingsFile      = "ratings.csv"
	UsersFile        = "user_data.csv"
	CleanedFile      = "cleaned_data.csv"
	PrepCoursesFile  = "preprocessed_courses.csv"
	PrepRatingsFile  = "preprocessed_ratings.csv"
	PrepUsersFile    = "preprocessed_users.csv"
	UserCourseMatrix = "user_course_matrix.csv"
)

// EncodedColumns are the user profile columns that get label encoded.
var EncodedColumns = []string{ColGender, ColEducationLevel, ColSkillLevel}

// Result holds the cleaned datasets.
type Result struct {
	Courses  *Table
	Ratings  *Table
	Users    *Table
	Merged   *Table
	Encoders map[string]*LabelEncoder
}

// ParseRating parses a rating value; an empty value is an implicit rating of 1.
// NaN and infinities are rejected.
func ParseRating(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("rating %q is not a finite number", s)
	}
	return v, nil
}

// CleanCourses requires `course_id` and derives `meta` when it is absent.
func CleanCourses(courses *Table) error {
	if err := courses.Require(ColCourseID); err != nil {
		return err
	}
	courses.Filter(func(i int) bool { return courses.Get(i, ColCourseID) != "" })
	if courses.Has(ColMeta) {
		return nil
	}
	courses.AddColumn(ColMeta)
	for i := range courses.Rows {
		courses.Set(i, ColMeta, CourseMeta(
			courses.Get(i, ColCourseID),
			courses.Get(i, ColTitle),
			courses.Get(i, ColCategory),
			courses.Get(i, ColTags),
			courses.Get(i, ColLevel),
		))
	}
	return nil
}

// CourseMeta space-joins the non-empty descriptive fields of a course, falling back to its id.
func CourseMeta(id string, fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return id
	}
	return strings.Join(parts, " ")
}

// CleanRatings requires the id columns, drops rows with an empty id and makes `rating` numeric.
func CleanRatings(ratings *Table) error {
	if err := ratings.Require(ColUserID, ColCourseID); err != nil {
		return err
	}
	ratings.Filter(func(i int) bool {
		return ratings.Get(i, ColUserID) != "" && ratings.Get(i, ColCourseID) != ""
	})
	hasRating := ratings.Has(ColRating)
	ratings.AddColumn(ColRating)
	for i := range ratings.Rows {
		raw := ""
		if hasRating {
			raw = ratings.Get(i, ColRating)
		}
		v, err := ParseRating(raw)
		if err != nil {
			return errors.Errorf("ratings row %d: invalid rating %q", i+1, raw)
		}
		ratings.Set(i, ColRating, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return nil
}

// CleanUsers requires `user_id` and label encodes the profile columns.
func CleanUsers(users *Table) (map[string]*LabelEncoder, error) {
	if err := users.Require(ColUserID); err != nil {
		return nil, err
	}
	encoders := make(map[string]*LabelEncoder)
	for _, col := range EncodedColumns {
		if le := EncodeColumn(users, col); le != nil {
			encoders[col] = le
		}
	}
	return encoders, nil
}

// Preprocess cleans the three datasets in place and left-joins them: ratings ⋈ courses ⋈ users.
func Preprocess(courses, ratings, users *Table) (*Result, error) {
	if err := CleanCourses(courses); err != nil {
		return nil, errors.Wrap(err, "cleaning courses")
	}
	if err := CleanRatings(ratings); err != nil {
		return nil, errors.Wrap(err, "cleaning ratings")
	}
	encoders, err := CleanUsers(users)
	if err != nil {
		return nil, errors.Wrap(err, "cleaning users")
	}

	merged := LeftJoin(ratings, courses, ColCourseID, "_rating", "_course")
	merged = LeftJoin(merged, users, ColUserID, "", "_user")
	return &Result{
		Courses:  courses,
		Ratings:  ratings,
		Users:    users,
		Merged:   merged,
		Encoders: encoders,
	}, nil
}

// LeftJoin joins right onto left on key. Non-key columns present on both sides get the suffixes.
// A left row matching several right rows is repeated; an unmatched one gets empty right columns.
func LeftJoin(left, right *Table, key, leftSuffix, rightSuffix string) *Table {
	rightCols := make([]string, 0, len(right.Header))
	for _, h := range right.Header {
		if h != key {
			rightCols = append(rightCols, h)
		}
	}

	header := make([]string, 0, len(left.Header)+len(rightCols))
	for _, h := range left.Header {
		if h != key && right.Has(h) {
			h += leftSuffix
		}
		header = append(header, h)
	}
	for _, h := range rightCols {
		if left.Has(h) {
			h += rightSuffix
		}
		header = append(header, h)
	}

	rightIdx := make(map[string][]int, right.Len())
	for i := range right.Rows {
		k := right.Get(i, key)
		rightIdx[k] = append(rightIdx[k], i)
	}

	out := NewTable(header)
	for i := range left.Rows {
		base := make([]string, len(left.Header))
		for j, h := range left.Header {
			base[j] = left.Get(i, h)
		}
		matches := rightIdx[left.Get(i, key)]
		if len(matches) == 0 {
			out.Rows = append(out.Rows, append(base, make([]string, len(rightCols))...))
			continue
		}
		for _, ri := range matches {
			row := append([]string{}, base...)
			for _, h := range rightCols {
				row = append(row, right.Get(ri, h))
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// PreprocessDir reads the raw datasets from dir and writes the cleaned ones next to them.
func PreprocessDir(dir string) (*Result, error) {
	read := func(name string) (*Table, error) {
		t, err := ReadTableFile(filepath.Join(dir, name), DefaultAliases)
		return t, errors.Wrap(err, name)
	}
	courses, err := read(CoursesFile)
	if err != nil {
		return nil, err
	}
	ratings, err := read(RatingsFile)
	if err != nil {
		return nil, err
	}
	users, err := read(UsersFile)
	if err != nil {
		return nil, err
	}

	res, err := Preprocess(courses, ratings, users)
	if err != nil {
		return nil, err
	}

	for name, t := range map[string]*Table{
		CleanedFile:     res.Merged,
		PrepCoursesFile: res.Courses,
		PrepRatingsFile: res.Ratings,
		PrepUsersFile:   res.Users,
	} {
		if err = WriteTableFile(filepath.Join(dir, name), t); err != nil {
			return nil, errors.Wrap(err, name)
		}
	}
	return res, nil
}

// WriteTableFile atomically replaces path with the CSV rendering of t.
func WriteTableFile(path string, t *Table) error {
	return WriteFileAtomic(path, func(f *os.File) error { return t.Write(f) })
}

// WriteFileAtomic writes to a temp file in the same directory and renames it over path.
func WriteFileAtomic(path string, write func(f *os.File) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "syncing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, fmt.Sprintf("renaming to %s", path))
	}
	return nil
}
