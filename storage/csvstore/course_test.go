package csvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coursemate/core/course"
	"github.com/trezcool/coursemate/core/dataset"
)

const coursesCSV = "\ufeffCourseID,Title,Categories,Tags,Level\n" +
	"1,Intro to Go,Programming,go backend,beginner\n" +
	",orphan row,,,\n" +
	"\n" +
	"2.0,Statistics,Data Science,math,intermediate\n" +
	"3,Untitled\n"

func TestReadCourses(t *testing.T) {
	courses, err := ReadCourses(strings.NewReader(coursesCSV))
	require.NoError(t, err)
	require.Len(t, courses, 3)

	assert.Equal(t, course.Course{
		ID:       1,
		Title:    "Intro to Go",
		Category: "Programming",
		Tags:     "go backend",
		Level:    "beginner",
		Meta:     "Intro to Go Programming go backend beginner",
	}, courses[0])
	assert.Equal(t, 2, courses[1].ID)
	assert.Equal(t, "Data Science", courses[1].Category)
	assert.Equal(t, "Untitled", courses[2].Meta)
}

func TestReadCourses_edgeCases(t *testing.T) {
	courses, err := ReadCourses(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, courses)

	courses, err = ReadCourses(strings.NewReader("course_id,title\n"))
	require.NoError(t, err)
	assert.Empty(t, courses)

	// first column wins on repeated headers
	courses, err = ReadCourses(strings.NewReader("course_id,title,title\n5,first,second\n"))
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "first", courses[0].Title)

	_, err = ReadCourses(strings.NewReader("title\nGo\n"))
	var missing *dataset.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "course_id", missing.Name)

	_, err = ReadCourses(strings.NewReader("course_id\nabc\n"))
	assert.Error(t, err)
}

func newTestStore(t *testing.T, content string) *CourseStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courses.csv")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	store, err := NewCourseStore(path)
	require.NoError(t, err)
	return store
}

func TestCourseStore_missingFile(t *testing.T) {
	store := newTestStore(t, "")
	assert.Empty(t, store.Courses())

	ctx := context.Background()
	require.NoError(t, store.AddCourse(ctx, course.Course{ID: 9, Title: "First"}))
	assert.FileExists(t, store.Path())
}

func TestCourseStore_writes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, coursesCSV)
	before := store.Courses()

	require.NoError(t, store.AddCourse(ctx, course.Course{ID: 4, Title: "Linear Algebra", Category: "Math", Meta: "Linear Algebra Math"}))
	assert.ErrorIs(t, store.AddCourse(ctx, course.Course{ID: 4, Title: "Again"}), course.ErrIDExists)
	assert.Len(t, store.Courses(), 4)
	assert.Len(t, before, 3, "snapshots are immutable")

	require.NoError(t, store.DeleteCourse(ctx, 1))
	assert.ErrorIs(t, store.DeleteCourse(ctx, 1), course.ErrNotFound)

	// the file was rewritten with the canonical header
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "course_id,title,category,tags,level,meta\n"))

	reopened, err := NewCourseStore(store.Path())
	require.NoError(t, err)
	assert.Equal(t, store.Courses(), reopened.Courses())

	ids := make([]int, 0)
	for _, c := range reopened.Courses() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int{2, 3, 4}, ids)
}

func TestCourseStore_Reload(t *testing.T) {
	store := newTestStore(t, coursesCSV)
	require.NoError(t, os.WriteFile(store.Path(), []byte("course_id,title\n7,Fresh\n"), 0o644))
	require.NoError(t, store.Reload(context.Background()))

	courses := store.Courses()
	require.Len(t, courses, 1)
	assert.Equal(t, "Fresh", courses[0].Title)

	require.NoError(t, os.WriteFile(store.Path(), []byte("title\nbroken\n"), 0o644))
	assert.Error(t, store.Reload(context.Background()))
	assert.Len(t, store.Courses(), 1, "a failed reload keeps the previous snapshot")
}

func TestCourseStore_concurrentWriters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			assert.NoError(t, store.AddCourse(ctx, course.Course{ID: id, Title: fmt.Sprintf("Course %d", id)}))
			_ = store.Courses()
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Courses(), 20)
	reopened, err := NewCourseStore(store.Path())
	require.NoError(t, err)
	assert.Len(t, reopened.Courses(), 20)
}
