package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/user"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())
	now := time.Now().UTC()

	alice, err := repo.CreateUser(ctx, user.User{Username: "alice", Email: "alice@example.com", Age: 30, IsActive: true, CreatedAt: now})
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, user.User{Username: "bob", Age: 25, Profession: "Nurse", IsActive: true, CreatedAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, user.User{Username: "carol", Age: 41, Roles: []string{user.RoleAdmin}, CreatedAt: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 1, alice.ID)
	assert.Equal(t, 2, bob.ID)

	t.Run("uniqueness", func(t *testing.T) {
		assert.ErrorIs(t, repo.CheckUniqueness(ctx, "alice", ""), user.ErrUsernameExists)
		assert.ErrorIs(t, repo.CheckUniqueness(ctx, "dave", "alice@example.com"), user.ErrEmailExists)
		assert.NoError(t, repo.CheckUniqueness(ctx, "alice", "alice@example.com", alice))
		// an empty email never conflicts
		assert.NoError(t, repo.CheckUniqueness(ctx, "dave", ""))
	})

	t.Run("get", func(t *testing.T) {
		usr, err := repo.GetUserByUsernameOrEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, usr.ID)

		_, err = repo.GetUserByEmail(ctx, "")
		assert.ErrorIs(t, err, user.ErrNotFound)
		_, err = repo.GetUserByID(ctx, 99)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("query", func(t *testing.T) {
		users, err := repo.QueryUsers(ctx, user.QueryFilter{}, []core.DBOrdering{{Field: "age", Ascending: false}})
		require.NoError(t, err)
		assert.Equal(t, []string{"carol", "alice", "bob"}, usernames(users))

		active := true
		users, err = repo.QueryUsers(ctx, user.QueryFilter{IsActive: &active}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, usernames(users))

		users, err = repo.QueryUsers(ctx, user.QueryFilter{Profession: "nurse"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, usernames(users))

		users, err = repo.QueryUsers(ctx, user.QueryFilter{Roles: []string{user.RoleAdmin}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"carol"}, usernames(users))
	})

	t.Run("update & delete", func(t *testing.T) {
		bob.Profession = "Doctor"
		updated, err := repo.UpdateUser(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, "Doctor", updated.Profession)

		_, err = repo.UpdateUser(ctx, user.User{ID: 99})
		assert.ErrorIs(t, err, user.ErrNotFound)

		require.NoError(t, repo.DeleteUsersByID(ctx, bob.ID, 99))
		n, err := repo.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func usernames(users []user.User) []string {
	res := make([]string, 0, len(users))
	for _, u := range users {
		res = append(res, u.Username)
	}
	return res
}
