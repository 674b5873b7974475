package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, data string) *Table {
	t.Helper()
	tbl, err := ReadTable(strings.NewReader(data), DefaultAliases)
	require.NoError(t, err)
	return tbl
}

func TestReadTable_normalizesHeaders(t *testing.T) {
	tbl := mustTable(t, " UserID ,CourseId, Stars\n1,A,5\n\n2,B\n")

	assert.Equal(t, []string{ColUserID, ColCourseID, ColRating}, tbl.Header)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "5", tbl.Get(0, ColRating))
	assert.Equal(t, "", tbl.Get(1, ColRating), "short rows read as empty")
	assert.Equal(t, "", tbl.Get(0, "missing"))
}

func TestCleanRatings(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantErr    string
		wantMiss   string
		wantRows   [][]string // user_id, course_id, rating
		wantRating bool
	}{
		{name: "missing user column", data: "course_id,rating\nA,5\n", wantMiss: ColUserID},
		{name: "missing course column", data: "userid,rating\n1,5\n", wantMiss: ColCourseID},
		{
			name:     "implicit rating",
			data:     "user_id,course_id\n1,A\n2,B\n",
			wantRows: [][]string{{"1", "A", "1"}, {"2", "B", "1"}},
		},
		{
			name:     "score alias & empty ids dropped",
			data:     "user_id,course_id,score\n1,A,4.5\n,B,3\n2,,1\n3,C,2\n",
			wantRows: [][]string{{"1", "A", "4.5"}, {"3", "C", "2"}},
		},
		{name: "invalid rating", data: "user_id,course_id,rating\n1,A,lol\n", wantErr: `ratings row 1: invalid rating "lol"`},
		{name: "NaN rating", data: "user_id,course_id,rating\n1,A,4\n2,B,NaN\n", wantErr: `ratings row 2: invalid rating "NaN"`},
		{name: "infinite rating", data: "user_id,course_id,rating\n1,A,inf\n", wantErr: `ratings row 1: invalid rating "inf"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := mustTable(t, tt.data)
			err := CleanRatings(tbl)
			switch {
			case tt.wantMiss != "":
				var mcErr *MissingColumnError
				require.ErrorAs(t, err, &mcErr)
				assert.Equal(t, tt.wantMiss, mcErr.Name)
				assert.Equal(t, "MissingColumn: "+tt.wantMiss, err.Error())
			case tt.wantErr != "":
				require.EqualError(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				got := make([][]string, 0, tbl.Len())
				for i := range tbl.Rows {
					got = append(got, []string{tbl.Get(i, ColUserID), tbl.Get(i, ColCourseID), tbl.Get(i, ColRating)})
				}
				assert.Equal(t, tt.wantRows, got)
			}
		})
	}
}

func TestCourseMeta(t *testing.T) {
	assert.Equal(t, "Go Basics programming go,backend beginner", CourseMeta("1", "Go Basics", "programming", " go,backend ", "beginner"))
	assert.Equal(t, "Go Basics", CourseMeta("1", "Go Basics", "", ""))
	assert.Equal(t, "42", CourseMeta("42", "", " "))
}

func TestEncodeColumn(t *testing.T) {
	tbl := mustTable(t, "user_id,gender\n1,male\n2,female\n3,\n4,male\n")

	le := EncodeColumn(tbl, ColGender)
	require.NotNil(t, le)
	assert.Equal(t, []string{"", "female", "male"}, le.Classes)

	var codes []string
	for i := range tbl.Rows {
		codes = append(codes, tbl.Get(i, "gender_enc"))
	}
	assert.Equal(t, []string{"2", "1", "0", "2"}, codes)
	assert.Equal(t, -1, le.Transform("other"))
	assert.Nil(t, EncodeColumn(tbl, ColSkillLevel))
}

func TestPreprocessDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		CoursesFile: "CourseID,Title,Categories,Tags,Level\n" +
			"A,Go Basics,Programming,go,Beginner\n" +
			"B,Statistics,Data Science,,Intermediate\n",
		RatingsFile: "userid,courseid,stars\n1,A,5\n1,B,3\n2,C,4\n",
		UsersFile:   "user_id,age,gender,education\n1,22,female,bachelor\n3,40,male,master\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	res, err := PreprocessDir(dir)
	require.NoError(t, err)

	assert.Equal(t, "Statistics Data Science Intermediate", res.Courses.Get(1, ColMeta))
	assert.Contains(t, res.Encoders, ColGender)
	assert.Contains(t, res.Encoders, ColEducationLevel)
	assert.NotContains(t, res.Encoders, ColSkillLevel)

	merged := res.Merged
	require.Equal(t, 3, merged.Len())
	assert.Equal(t, "Go Basics", merged.Get(0, ColTitle))
	assert.Equal(t, "22", merged.Get(0, "age"))
	assert.Equal(t, "", merged.Get(2, ColTitle), "unknown course leaves course columns empty")
	assert.Equal(t, "", merged.Get(2, "age"), "unknown user leaves user columns empty")

	written, err := ReadTableFile(filepath.Join(dir, CleanedFile), nil)
	require.NoError(t, err)
	assert.Equal(t, merged.Header, written.Header)
	assert.Equal(t, 3, written.Len())

	for _, name := range []string{PrepCoursesFile, PrepRatingsFile, PrepUsersFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestPreprocessDir_missingFile(t *testing.T) {
	_, err := PreprocessDir(t.TempDir())
	assert.Error(t, err)
}
