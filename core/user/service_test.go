package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/user"
	"github.com/trezcool/coursemate/services/email"
	"github.com/trezcool/coursemate/storage/database/inmem"
	"github.com/trezcool/coursemate/tests"
)

func newService(t *testing.T) (*user.Service, user.Repository, *emailsvc.ConsoleServiceMock) {
	t.Helper()
	conf := testutil.NewConfig(t)
	core.ParseEmailTemplates(conf, testutil.Logger{})
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	return user.NewService(repo, mailSvc, conf), repo, mailSvc
}

func fieldErrors(t *testing.T, err error) []core.FieldError {
	t.Helper()
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	return vErr.Fields
}

func TestService_Register(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.RegisterUser{
		Username:        "alice",
		Name:            "Alice",
		Email:           "alice@example.com",
		Profession:      "Nursing",
		Password:        "Gr3en-Tea!",
		PasswordConfirm: "Gr3en-Tea!",
	})
	require.NoError(t, err)
	assert.NotZero(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsStudent())
	assert.False(t, usr.IsAdmin())
	assert.NoError(t, usr.CheckPassword("Gr3en-Tea!"))
	assert.Equal(t, "Nursing", usr.Profession)

	_, err = svc.Register(ctx, user.RegisterUser{Username: "alice", Password: "x", PasswordConfirm: "x"})
	assert.Equal(t, []core.FieldError{{Field: "username", Error: user.ErrUsernameExists.Error()}}, fieldErrors(t, err))

	_, err = svc.Register(ctx, user.RegisterUser{Username: "alice2", Email: "alice@example.com", Password: "x", PasswordConfirm: "x"})
	assert.Equal(t, []core.FieldError{{Field: "email", Error: user.ErrEmailExists.Error()}}, fieldErrors(t, err))

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_Update(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, repo, "Alice", "alice", "alice@example.com", "pwd", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, repo, "Bob", "bob", "bob@example.com", "pwd", []string{user.RoleStudent}, true)

	profession := "Software Engineer"
	inactive := false
	uu := user.UpdateUser{Name: "Alice A.", Profession: &profession, IsActive: &inactive}
	uu.Username, uu.Email = alice.Username, alice.Email

	usr, err := svc.Update(ctx, alice, uu)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", usr.Name)
	assert.Equal(t, "Software Engineer", usr.Profession)
	assert.False(t, usr.IsActive)
	assert.True(t, usr.UpdatedAt.After(alice.UpdatedAt) || usr.UpdatedAt.Equal(alice.UpdatedAt))

	_, err = svc.Update(ctx, usr, user.UpdateUser{Username: "bob", Email: usr.Email})
	assert.Equal(t, []core.FieldError{{Field: "username", Error: user.ErrUsernameExists.Error()}}, fieldErrors(t, err))
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, mailSvc := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, repo, "Alice", "alice", "alice@example.com", "old-pwd", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, repo, "Inactive", "inactive", "inactive@example.com", "pwd", nil, false)

	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "inactive@example.com"))
	assert.Empty(t, mailSvc.SentMessages())

	require.NoError(t, svc.RequestPasswordReset(ctx, " ALICE@example.com "))
	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "alice@example.com", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "/password-reset/"+user.EncodeUID(alice)+"/")

	data := msg.TemplateData.(map[string]interface{})
	uid, _ := data["UID"].(string)
	token, _ := data["Token"].(string)
	require.NotEmpty(t, token)

	t.Run("invalid uid", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: "!!", Token: token, Password: "new", PasswordConfirm: "new"})
		assert.Equal(t, []core.FieldError{{Field: "uid", Error: "invalid value"}}, fieldErrors(t, err))
	})

	t.Run("invalid token", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "bad-token", Password: "new", PasswordConfirm: "new"})
		assert.Equal(t, []core.FieldError{{Field: "token", Error: "invalid value"}}, fieldErrors(t, err))
	})

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "new-pwd", PasswordConfirm: "new-pwd"}))
		usr, err := svc.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword("new-pwd"))

		// the token is bound to the old password hash
		err = svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "again", PasswordConfirm: "again"})
		assert.Equal(t, []core.FieldError{{Field: "token", Error: "invalid value"}}, fieldErrors(t, err))
	})
}

func TestService_Delete(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, repo, "", "a", "", "pwd", nil, true)
	b := testutil.CreateUser(t, repo, "", "b", "", "pwd", nil, true)

	require.NoError(t, svc.Delete(ctx, a.ID, b.ID))
	_, err := svc.GetByID(ctx, a.ID)
	assert.Equal(t, user.ErrNotFound, err)
	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
