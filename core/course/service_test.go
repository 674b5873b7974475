package course

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coursemate/core"
)

type memStore struct {
	courses []Course
}

func (s *memStore) Courses() []Course { return s.courses }

func (s *memStore) AddCourse(_ context.Context, c Course) error {
	for _, existing := range s.courses {
		if existing.ID == c.ID {
			return ErrIDExists
		}
	}
	s.courses = append(s.courses, c)
	return nil
}

func (s *memStore) DeleteCourse(_ context.Context, id int) error {
	kept := make([]Course, 0, len(s.courses))
	for _, c := range s.courses {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(s.courses) {
		return ErrNotFound
	}
	s.courses = kept
	return nil
}

func (s *memStore) Reload(context.Context) error { return nil }

func newTestService(sampleSize int) *Service {
	conf := core.NewTestConfig(".")
	conf.Catalog.RandomSampleSize = sampleSize
	store := &memStore{courses: []Course{
		{ID: 1, Title: "Intro to Go", Category: "Programming", Tags: "backend", Level: "beginner"},
		{ID: 2, Title: "Statistics 101", Category: "Data Science", Tags: "math", Level: "beginner"},
		{ID: 3, Title: "Clinical Nursing", Category: "Health", Tags: "nurse hospital", Level: "advanced"},
		{ID: 4, Title: "Deep Learning", Category: "Data Science", Tags: "python ml", Level: "advanced"},
		{ID: 5, Title: "Accounting Basics", Category: "Finance", Tags: "", Level: "beginner"},
	}}
	svc := NewService(store, conf)
	svc.shuffle = func(int, func(i, j int)) {} // keep catalog order
	return svc
}

func ids(courses []Course) []int {
	res := make([]int, 0, len(courses))
	for _, c := range courses {
		res = append(res, c.ID)
	}
	return res
}

func TestService_Search(t *testing.T) {
	svc := newTestService(10)

	tests := []struct {
		query string
		want  []int
	}{
		{query: "", want: []int{}},
		{query: "   ", want: []int{}},
		{query: "intro", want: []int{1}},
		{query: "  DATA science ", want: []int{2, 4}},
		{query: "python", want: []int{4}},
		{query: "ing", want: []int{1, 3, 4, 5}},
		{query: "cobol", want: []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(svc.Search(tc.query)))
		})
	}
}

func TestService_ForProfession(t *testing.T) {
	svc := newTestService(3)

	assert.Equal(t, []int{3}, ids(svc.ForProfession("Nurse")))
	assert.Equal(t, []int{2, 4}, ids(svc.ForProfession("data")))
	assert.Empty(t, svc.ForProfession("astronaut"))
	// title is not considered
	assert.Empty(t, svc.ForProfession("statistics"))

	// no profession: random sample
	assert.Equal(t, []int{1, 2, 3}, ids(svc.ForProfession("")))
	svc.sampleSize = 50
	assert.Len(t, svc.ForProfession(" "), 5)
}

func TestService_ForProfession_sampleIsACopy(t *testing.T) {
	svc := newTestService(10)
	svc.shuffle = func(n int, swap func(i, j int)) { swap(0, n-1) }

	assert.Equal(t, []int{5, 2, 3, 4, 1}, ids(svc.ForProfession("")))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(svc.All()))
}

func TestService_Get(t *testing.T) {
	svc := newTestService(10)

	c, err := svc.Get(3)
	require.NoError(t, err)
	assert.Equal(t, "Clinical Nursing", c.Title)

	_, err = svc.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []int{4, 1}, ids(svc.GetMany([]int{4, 42, 1})))
}

func TestService_AddDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)
	validate := validator.New()

	nc := NewCourse{ID: 6, Title: "  Go Concurrency ", Category: "Programming", Level: "advanced"}
	require.NoError(t, nc.Validate(validate))
	c, err := svc.Add(ctx, nc)
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", c.Title)
	assert.Equal(t, "Go Concurrency Programming advanced", c.Meta)

	_, err = svc.Add(ctx, NewCourse{ID: 6, Title: "Duplicate"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "id", vErr.Fields[0].Field)

	require.NoError(t, svc.Delete(ctx, 6))
	assert.ErrorIs(t, svc.Delete(ctx, 6), ErrNotFound)
}

func TestNewCourse_Validate(t *testing.T) {
	validate := validator.New()

	tests := []struct {
		name    string
		nc      NewCourse
		wantErr bool
	}{
		{name: "valid", nc: NewCourse{ID: 1, Title: "Go"}},
		{name: "missing id", nc: NewCourse{Title: "Go"}, wantErr: true},
		{name: "negative id", nc: NewCourse{ID: -3, Title: "Go"}, wantErr: true},
		{name: "blank title", nc: NewCourse{ID: 1, Title: "   "}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.nc.Validate(validate)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(10)

	assert.Equal(t, Stats{
		TotalCourses: 5,
		Categories: []LabelCount{
			{Label: "Data Science", Count: 2},
			{Label: "Finance", Count: 1},
			{Label: "Health", Count: 1},
			{Label: "Programming", Count: 1},
		},
		Levels: []LabelCount{
			{Label: "beginner", Count: 3},
			{Label: "advanced", Count: 2},
		},
	}, svc.Stats())
}
