// Package course serves the course catalog: keyword search, profession matching and admin edits.
package course

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/coursemate/core"
)

var (
	// errors
	ErrNotFound = errors.New("course not found")
	ErrIDExists = errors.New("a course with this id already exists")
)

type (
	// Store persists the catalog. Courses returns an immutable snapshot: callers must not modify it.
	Store interface {
		Courses() []Course
		// AddCourse returns ErrIDExists when the id is taken.
		AddCourse(ctx context.Context, c Course) error
		// DeleteCourse removes every row holding id; ErrNotFound when there is none.
		DeleteCourse(ctx context.Context, id int) error
		Reload(ctx context.Context) error
	}

	Service struct {
		store      Store
		sampleSize int
		shuffle    func(n int, swap func(i, j int))
	}
)

func NewService(store Store, conf *core.Config) *Service {
	size := conf.Catalog.RandomSampleSize
	if size <= 0 {
		size = 10
	}
	return &Service{store: store, sampleSize: size, shuffle: rand.Shuffle}
}

func (svc *Service) All() []Course {
	return svc.store.Courses()
}

// Search returns the courses whose title, category or tags contain query, case-insensitively.
// An empty query matches nothing.
func (svc *Service) Search(query string) []Course {
	q := core.CleanString(query, true /* lower */)
	if q == "" {
		return []Course{}
	}
	return filter(svc.store.Courses(), func(c Course) bool { return c.Matches(q) })
}

// ForProfession returns the courses whose category or tags mention profession.
// Without a profession, a random sample of the catalog is returned instead.
func (svc *Service) ForProfession(profession string) []Course {
	p := core.CleanString(profession, true /* lower */)
	courses := svc.store.Courses()
	if p != "" {
		return filter(courses, func(c Course) bool { return c.MatchesProfession(p) })
	}

	sample := make([]Course, len(courses))
	copy(sample, courses)
	svc.shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
	if len(sample) > svc.sampleSize {
		sample = sample[:svc.sampleSize]
	}
	return sample
}

func (svc *Service) Get(id int) (Course, error) {
	for _, c := range svc.store.Courses() {
		if c.ID == id {
			return c, nil
		}
	}
	return Course{}, ErrNotFound
}

// GetMany returns the courses for ids, in the order of ids. Unknown ids are skipped.
func (svc *Service) GetMany(ids []int) []Course {
	byID := make(map[int]Course)
	for _, c := range svc.store.Courses() {
		if _, ok := byID[c.ID]; !ok {
			byID[c.ID] = c
		}
	}
	courses := make([]Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			courses = append(courses, c)
		}
	}
	return courses
}

// Add appends a validated NewCourse to the catalog.
func (svc *Service) Add(ctx context.Context, nc NewCourse) (Course, error) {
	c := nc.toCourse()
	if err := svc.store.AddCourse(ctx, c); err != nil {
		if errors.Cause(err) == ErrIDExists {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "id", Error: ErrIDExists.Error()})
		}
		return Course{}, errors.Wrap(err, "adding course")
	}
	return c, nil
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.store.DeleteCourse(ctx, id)
}

func (svc *Service) Reload(ctx context.Context) error {
	return svc.store.Reload(ctx)
}

func (svc *Service) Stats() Stats {
	courses := svc.store.Courses()
	categories := make(map[string]int)
	levels := make(map[string]int)
	for _, c := range courses {
		if cat := strings.TrimSpace(c.Category); cat != "" {
			categories[cat]++
		}
		if lvl := strings.TrimSpace(c.Level); lvl != "" {
			levels[lvl]++
		}
	}
	return Stats{
		TotalCourses: len(courses),
		Categories:   sortedCounts(categories),
		Levels:       sortedCounts(levels),
	}
}

func filter(courses []Course, keep func(Course) bool) []Course {
	res := make([]Course, 0)
	for _, c := range courses {
		if keep(c) {
			res = append(res, c)
		}
	}
	return res
}

// sortedCounts orders by count desc then label.
func sortedCounts(counts map[string]int) []LabelCount {
	res := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		res = append(res, LabelCount{Label: label, Count: n})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].Label < res[j].Label
	})
	return res
}
