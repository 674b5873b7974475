// Package csvstore keeps the course catalog in a CSV file.
package csvstore

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core/course"
	"github.com/trezcool/coursemate/core/dataset"
)

// CourseStore serves reads from an immutable in-memory snapshot.
// Writers are serialized; each write rewrites the whole file through a temp file renamed over the original,
// then swaps the snapshot.
type CourseStore struct {
	path     string
	snapshot atomic.Pointer[[]course.Course]
	writeMu  sync.Mutex
}

// NewCourseStore loads the catalog at path. A missing file is an empty catalog, created on first write.
func NewCourseStore(path string) (*CourseStore, error) {
	s := &CourseStore{path: path}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CourseStore) Path() string { return s.path }

func (s *CourseStore) Courses() []course.Course {
	return *s.snapshot.Load()
}

func (s *CourseStore) Reload(_ context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	courses, err := readCoursesFile(s.path)
	if err != nil {
		return err
	}
	s.snapshot.Store(&courses)
	return nil
}

func (s *CourseStore) AddCourse(ctx context.Context, c course.Course) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	curr := s.Courses()
	for _, existing := range curr {
		if existing.ID == c.ID {
			return course.ErrIDExists
		}
	}
	next := make([]course.Course, len(curr), len(curr)+1)
	copy(next, curr)
	next = append(next, c)
	return s.commit(ctx, next)
}

func (s *CourseStore) DeleteCourse(ctx context.Context, id int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	curr := s.Courses()
	next := make([]course.Course, 0, len(curr))
	for _, c := range curr {
		if c.ID != id {
			next = append(next, c)
		}
	}
	if len(next) == len(curr) {
		return course.ErrNotFound
	}
	return s.commit(ctx, next)
}

// commit must be called with writeMu held.
func (s *CourseStore) commit(ctx context.Context, courses []course.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := dataset.WriteFileAtomic(s.path, func(f *os.File) error { return WriteCourses(f, courses) }); err != nil {
		return errors.Wrap(err, "writing catalog")
	}
	s.snapshot.Store(&courses)
	return nil
}

func readCoursesFile(path string) ([]course.Course, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []course.Course{}, nil
		}
		return nil, errors.Wrap(err, "opening catalog")
	}
	defer func() { _ = f.Close() }()
	return ReadCourses(f)
}

// ReadCourses decodes a courses CSV. Headers go through dataset.NormalizeHeader; `course_id` is required.
// Rows without an id are dropped and a missing meta is derived from the other fields.
func ReadCourses(r io.Reader) ([]course.Course, error) {
	rdr := gocsv.LazyCSVReader(r)
	if csvRdr, ok := rdr.(*csv.Reader); ok {
		csvRdr.FieldsPerRecord = -1
	}
	in := &headerReader{CSVReader: rdr, aliases: dataset.DefaultAliases}
	var rows []course.Course
	if err := gocsv.UnmarshalCSV(in, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return []course.Course{}, nil
		}
		if _, ok := err.(*dataset.MissingColumnError); ok {
			return nil, err
		}
		return nil, errors.Wrap(err, "decoding catalog")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, c := range rows {
		if c.ID == 0 {
			continue
		}
		if c.Meta == "" {
			c.Meta = dataset.CourseMeta(strconv.Itoa(c.ID), c.Title, c.Category, c.Tags, c.Level)
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// WriteCourses encodes courses with the canonical header.
func WriteCourses(w io.Writer, courses []course.Course) error {
	return gocsv.MarshalCSV(courses, gocsv.DefaultCSVWriter(w))
}

// headerReader normalizes the header row and blanks repeated columns so the first occurrence wins.
type headerReader struct {
	gocsv.CSVReader
	aliases map[string]string
}

func (r *headerReader) ReadAll() ([][]string, error) {
	rows, err := r.CSVReader.ReadAll()
	if err != nil || len(rows) == 0 {
		return rows, err
	}

	seen := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		h = dataset.NormalizeHeader(h, r.aliases)
		if seen[h] {
			h = ""
		}
		seen[h] = true
		rows[0][i] = h
	}
	if !seen[dataset.ColCourseID] {
		return nil, &dataset.MissingColumnError{Name: dataset.ColCourseID}
	}

	body := rows[:1]
	for _, row := range rows[1:] {
		if !isBlank(row) {
			body = append(body, row)
		}
	}
	return body, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
