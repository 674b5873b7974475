package course

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/dataset"
)

// Course is a catalog entry, one row of courses.csv.
type Course struct {
	ID       int    `json:"id" csv:"course_id"`
	Title    string `json:"title" csv:"title"`
	Category string `json:"category" csv:"category"`
	Tags     string `json:"tags" csv:"tags"`
	Level    string `json:"level" csv:"level"`
	Meta     string `json:"meta" csv:"meta"`
}

// Matches reports whether the lower-cased query q is a substring of the title, category or tags.
func (c Course) Matches(q string) bool {
	return strings.Contains(strings.ToLower(c.Title), q) ||
		strings.Contains(strings.ToLower(c.Category), q) ||
		strings.Contains(strings.ToLower(c.Tags), q)
}

// MatchesProfession reports whether the lower-cased profession p is a substring of the category or tags.
func (c Course) MatchesProfession(p string) bool {
	return strings.Contains(strings.ToLower(c.Category), p) ||
		strings.Contains(strings.ToLower(c.Tags), p)
}

// NewCourse is what an admin provides to add a course to the catalog.
type NewCourse struct {
	ID       int    `json:"id" validate:"required,gt=0"`
	Title    string `json:"title" validate:"required,max=255"`
	Category string `json:"category" validate:"max=255"`
	Tags     string `json:"tags" validate:"max=1000"`
	Level    string `json:"level" validate:"max=64"`
	Meta     string `json:"meta"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Category = core.CleanString(nc.Category)
	nc.Tags = core.CleanString(nc.Tags)
	nc.Level = core.CleanString(nc.Level)
	nc.Meta = core.CleanString(nc.Meta)
	return validate.Struct(nc)
}

func (nc NewCourse) toCourse() Course {
	c := Course{
		ID:       nc.ID,
		Title:    nc.Title,
		Category: nc.Category,
		Tags:     nc.Tags,
		Level:    nc.Level,
		Meta:     nc.Meta,
	}
	if c.Meta == "" {
		c.Meta = dataset.CourseMeta(strconv.Itoa(c.ID), c.Title, c.Category, c.Tags, c.Level)
	}
	return c
}

// LabelCount is the number of courses sharing a label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats summarizes the catalog for the admin dashboard.
type Stats struct {
	TotalCourses int          `json:"total_courses"`
	Categories   []LabelCount `json:"categories"`
	Levels       []LabelCount `json:"levels"`
}
