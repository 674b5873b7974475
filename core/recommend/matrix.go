package recommend

import (
	"io"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RatingMatrix is the dense user x course table. Rows and columns are sorted by id;
// a pair without rating holds 0, duplicate ratings hold their mean.
type RatingMatrix struct {
	UserIDs   []string
	CourseIDs []string
	Values    *mat.Dense // nil when there are no ratings

	userIndex map[string]int
}

// BuildMatrix pivots ratings into a RatingMatrix.
func BuildMatrix(ratings []Rating) *RatingMatrix {
	type cell struct {
		sum   float64
		count int
	}
	type key struct{ user, course string }

	cells := make(map[key]*cell, len(ratings))
	users := make(map[string]struct{})
	courses := make(map[string]struct{})
	for _, r := range ratings {
		k := key{r.UserID, r.CourseID}
		c, ok := cells[k]
		if !ok {
			c = new(cell)
			cells[k] = c
		}
		c.sum += r.Value
		c.count++
		users[r.UserID] = struct{}{}
		courses[r.CourseID] = struct{}{}
	}

	m := &RatingMatrix{
		UserIDs:   sortedIDs(users),
		CourseIDs: sortedIDs(courses),
	}
	m.userIndex = indexOf(m.UserIDs)
	if len(cells) == 0 {
		return m
	}

	courseIndex := indexOf(m.CourseIDs)
	m.Values = mat.NewDense(len(m.UserIDs), len(m.CourseIDs), nil)
	for k, c := range cells {
		m.Values.Set(m.userIndex[k.user], courseIndex[k.course], c.sum/float64(c.count))
	}
	return m
}

// Dims returns the number of users & courses.
func (m *RatingMatrix) Dims() (users, courses int) {
	return len(m.UserIDs), len(m.CourseIDs)
}

// At returns the aggregated rating of (userID, courseID), 0 when unrated or unknown.
func (m *RatingMatrix) At(userID, courseID string) float64 {
	i, ok := m.userIndex[userID]
	if !ok || m.Values == nil {
		return 0
	}
	j := sort.Search(len(m.CourseIDs), func(j int) bool { return compareIDs(m.CourseIDs[j], courseID) >= 0 })
	if j == len(m.CourseIDs) || m.CourseIDs[j] != courseID {
		return 0
	}
	return m.Values.At(i, j)
}

// WriteCSV writes the matrix with a `user_id` column followed by one column per course.
func (m *RatingMatrix) WriteCSV(w io.Writer) error {
	csvW := gocsv.DefaultCSVWriter(w)
	if err := csvW.Write(append([]string{"user_id"}, m.CourseIDs...)); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, uid := range m.UserIDs {
		row := make([]string, 0, len(m.CourseIDs)+1)
		row = append(row, uid)
		for j := range m.CourseIDs {
			row = append(row, strconv.FormatFloat(m.Values.At(i, j), 'f', -1, 64))
		}
		if err := csvW.Write(row); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	csvW.Flush()
	return errors.Wrap(csvW.Error(), "flushing csv")
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return compareIDs(ids[i], ids[j]) < 0 })
	return ids
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}
