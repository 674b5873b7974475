// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/user"
)

const (
	CoursesCSV = `course_id,title,category,tags,level
1,Intro to Programming,Software,programming;beginner,Beginner
2,Advanced Nursing,Health,nursing;clinical,Advanced
3,Data Engineering,Software,data;pipelines,Intermediate
4,First Aid,Health,nursing;emergency,Beginner
5,Cloud Computing,Software,cloud;devops,Intermediate
`

	RatingsCSV = `user_id,course_id,rating
1,1,5
1,2,3
2,1,4
2,3,5
2,5,2
3,2,5
3,4,4
`
)

// Logger records nothing; it satisfies core.Logger in tests.
type Logger struct{}

var _ core.Logger = Logger{}

func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

// NewConfig returns a test config whose data files live in a fresh temporary directory.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	return core.NewTestConfig(t.TempDir())
}

// WriteDataFiles seeds the catalog and ratings files of conf.
func WriteDataFiles(t *testing.T, conf *core.Config, courses, ratings string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(conf.Catalog.CoursesPath), 0o755))
	require.NoError(t, os.WriteFile(conf.Catalog.CoursesPath, []byte(courses), 0o644))
	require.NoError(t, os.WriteFile(conf.Recommender.RatingsPath, []byte(ratings), 0o644))
}

// NewValidator returns a validator with the core and user validations registered, and their translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd), "createUser()")
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "createUser()")
	return usr
}
