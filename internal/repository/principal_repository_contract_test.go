package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
)

// runPrincipalRepositoryContract exercises the behaviour every store must share.
// newRepo must return an empty store.
func runPrincipalRepositoryContract(t *testing.T, newRepo func(t *testing.T) PrincipalRepository) {
	t.Helper()
	ctx := context.Background()

	create := func(t *testing.T, repo PrincipalRepository, externalID, email string) *models.Principal {
		t.Helper()
		p := &models.Principal{ExternalID: externalID, Email: email, DisplayName: "Test " + externalID}
		require.NoError(t, repo.Create(ctx, p))
		return p
	}

	t.Run("create fills generated fields", func(t *testing.T) {
		repo := newRepo(t)
		p := create(t, repo, "E1", "a@x.com")

		assert.NotEmpty(t, p.ID)
		assert.Equal(t, auth.RoleUser, p.Role)
		assert.False(t, p.CreatedAt.IsZero())
		assert.Empty(t, p.Favorites)
		assert.Nil(t, p.LastLoginAt)
	})

	t.Run("find by each key", func(t *testing.T) {
		repo := newRepo(t)
		p := create(t, repo, "E1", "a@x.com")

		byID, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "E1", byID.ExternalID)

		byExternal, err := repo.FindByExternalID(ctx, "E1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byExternal.ID)

		byEmail, err := repo.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byEmail.ID)
		assert.NotNil(t, byEmail.Favorites)

		_, err = repo.FindByExternalID(ctx, "missing")
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("duplicate external id or email is rejected", func(t *testing.T) {
		repo := newRepo(t)
		create(t, repo, "E1", "a@x.com")

		err := repo.Create(ctx, &models.Principal{ExternalID: "E1", Email: "other@x.com"})
		assert.ErrorIs(t, err, auth.ErrDuplicateIdentity)

		err = repo.Create(ctx, &models.Principal{ExternalID: "E2", Email: "a@x.com"})
		assert.ErrorIs(t, err, auth.ErrDuplicateIdentity)

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("concurrent registrations yield exactly one principal", func(t *testing.T) {
		repo := newRepo(t)

		const attempts = 8
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.Create(ctx, &models.Principal{ExternalID: "E1", Email: "a@x.com"})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, auth.ErrDuplicateIdentity)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("favorites are a set", func(t *testing.T) {
		repo := newRepo(t)
		p := create(t, repo, "E1", "a@x.com")

		favs, err := repo.AddFavorite(ctx, p.ID, "L1")
		require.NoError(t, err)
		assert.Equal(t, []string{"L1"}, favs)

		_, err = repo.AddFavorite(ctx, p.ID, "L1")
		assert.ErrorIs(t, err, auth.ErrAlreadyFavorited)

		favs, err = repo.AddFavorite(ctx, p.ID, "L2")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"L1", "L2"}, favs)

		favs, err = repo.RemoveFavorite(ctx, p.ID, "absent")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"L1", "L2"}, favs)

		favs, err = repo.RemoveFavorite(ctx, p.ID, "L1")
		require.NoError(t, err)
		assert.Equal(t, []string{"L2"}, favs)

		reloaded, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"L2"}, reloaded.Favorites)
	})

	t.Run("favorites on unknown principal", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.AddFavorite(ctx, "nope", "L1")
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
		_, err = repo.RemoveFavorite(ctx, "nope", "L1")
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
	})

	t.Run("concurrent adds of one listing persist once", func(t *testing.T) {
		repo := newRepo(t)
		p := create(t, repo, "E1", "a@x.com")

		const attempts = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		added := 0
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AddFavorite(ctx, p.ID, "L1")
				if err == nil {
					mu.Lock()
					added++
					mu.Unlock()
				} else {
					assert.True(t, errors.Is(err, auth.ErrAlreadyFavorited), "unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, added)
		reloaded, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"L1"}, reloaded.Favorites)
	})

	t.Run("touch last login leaves other fields", func(t *testing.T) {
		repo := newRepo(t)
		p := create(t, repo, "E1", "a@x.com")
		_, err := repo.AddFavorite(ctx, p.ID, "L1")
		require.NoError(t, err)

		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.TouchLastLogin(ctx, p.ID, at))

		reloaded, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded.LastLoginAt)
		assert.WithinDuration(t, at, *reloaded.LastLoginAt, time.Millisecond)
		assert.Equal(t, []string{"L1"}, reloaded.Favorites)
		assert.Equal(t, "Test E1", reloaded.DisplayName)

		assert.ErrorIs(t, repo.TouchLastLogin(ctx, "nope", at), ErrPrincipalNotFound)
	})

	t.Run("set role and list by role", func(t *testing.T) {
		repo := newRepo(t)
		a := create(t, repo, "E1", "a@x.com")
		create(t, repo, "E2", "b@x.com")

		updated, err := repo.SetRole(ctx, a.ID, auth.RoleAgent)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAgent, updated.Role)

		agents, err := repo.ListByRole(ctx, auth.RoleAgent)
		require.NoError(t, err)
		require.Len(t, agents, 1)
		assert.Equal(t, a.ID, agents[0].ID)

		users, err := repo.ListByRole(ctx, auth.RoleUser)
		require.NoError(t, err)
		assert.Len(t, users, 1)

		_, err = repo.SetRole(ctx, "nope", auth.RoleAdmin)
		assert.ErrorIs(t, err, ErrPrincipalNotFound)

		_, err = repo.SetRole(ctx, a.ID, auth.Role("root"))
		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})

	t.Run("list all newest first", func(t *testing.T) {
		repo := newRepo(t)
		first := create(t, repo, "E1", "a@x.com")
		time.Sleep(5 * time.Millisecond)
		second := create(t, repo, "E2", "b@x.com")

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, second.ID, all[0].ID)
		assert.Equal(t, first.ID, all[1].ID)
	})

	t.Run("update profile applies only provided fields", func(t *testing.T) {
		repo := newRepo(t)
		p := create(t, repo, "E1", "a@x.com")

		phone := "+15551234567"
		updated, err := repo.UpdateProfile(ctx, p.ID, ProfileUpdate{PhoneNumber: &phone})
		require.NoError(t, err)
		assert.Equal(t, phone, updated.PhoneNumber)
		assert.Equal(t, "Test E1", updated.DisplayName)

		name := "Ann"
		updated, err = repo.UpdateProfile(ctx, p.ID, ProfileUpdate{DisplayName: &name})
		require.NoError(t, err)
		assert.Equal(t, "Ann", updated.DisplayName)
		assert.Equal(t, phone, updated.PhoneNumber)

		_, err = repo.UpdateProfile(ctx, "nope", ProfileUpdate{DisplayName: &name})
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
	})

	t.Run("save replaces the record", func(t *testing.T) {
		repo := newRepo(t)
		p := create(t, repo, "E1", "a@x.com")

		p.DisplayName = "Saved"
		p.Favorites = []string{"L3", "L3", "L4"}
		require.NoError(t, repo.Save(ctx, p))

		reloaded, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Saved", reloaded.DisplayName)
		assert.ElementsMatch(t, []string{"L3", "L4"}, reloaded.Favorites)

		missing := &models.Principal{ID: "nope", ExternalID: "E9", Email: "z@x.com", Role: auth.RoleUser}
		assert.ErrorIs(t, repo.Save(ctx, missing), ErrPrincipalNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Ping(ctx))
	})
}
