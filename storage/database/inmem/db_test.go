package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/farsihub/backend/core/identity"
	"github.com/farsihub/backend/core/user"
)

func TestIdentityEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(NewDB())

	_, err := repo.CreateIdentity(ctx, identity.Identity{ID: "i1", Email: "sara@test.fh"})
	assert.NoError(t, err)

	assert.Equal(t, identity.ErrEmailExists, repo.CheckEmailUniqueness(ctx, "sara@test.fh"))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "omid@test.fh"))
}

func TestProfileWatchDeliversChangesAndDeletion(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewDB())

	p, err := repo.CreateProfile(ctx, user.Profile{ID: "u1", Name: "Sara", Role: user.RoleStudent})
	assert.NoError(t, err)

	type snap struct {
		p      user.Profile
		exists bool
	}
	var snaps []snap
	unsub := repo.WatchProfile("u1", func(p user.Profile, exists bool) {
		snaps = append(snaps, snap{p, exists})
	}, func(err error) { t.Errorf("unexpected watch error: %v", err) })
	defer unsub()

	p.Approved = true
	_, err = repo.UpdateProfile(ctx, p)
	assert.NoError(t, err)

	assert.NoError(t, repo.DeleteProfileByID(ctx, "u1"))

	if assert.Len(t, snaps, 2) {
		assert.True(t, snaps[0].exists)
		assert.True(t, snaps[0].p.Approved)
		assert.False(t, snaps[1].exists)
	}

	// unsubscribing is idempotent and stops delivery
	unsub()
	unsub()
	_, _ = repo.CreateProfile(ctx, user.Profile{ID: "u1", Name: "Sara"})
	assert.Len(t, snaps, 2)
}

func TestFilterProfiles(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewDB())

	now := time.Now().UTC()
	approved := true
	seed := []user.Profile{
		{ID: "u1", Name: "Sara Ahmadi", Email: "sara@test.fh", Role: user.RoleStudent, Approved: true, Year: null.StringFrom(user.YearFirst), CreatedAt: now},
		{ID: "u2", Name: "Omid Karimi", Email: "omid@test.fh", Role: user.RoleStudent, CreatedAt: now.Add(time.Second)},
		{ID: "u3", Name: "Admin", Email: "admin@test.fh", Role: user.RoleAdmin, Approved: true, CreatedAt: now.Add(2 * time.Second)},
	}
	for _, p := range seed {
		_, err := repo.CreateProfile(ctx, p)
		assert.NoError(t, err)
	}

	tests := []struct {
		name    string
		filter  user.QueryFilter
		wantIDs []string
	}{
		{"all newest first", user.QueryFilter{}, []string{"u3", "u2", "u1"}},
		{"by role", user.QueryFilter{Role: user.RoleAdmin}, []string{"u3"}},
		{"by approval", user.QueryFilter{Approved: &approved}, []string{"u3", "u1"}},
		{"by year", user.QueryFilter{Year: user.YearFirst}, []string{"u1"}},
		{"search name", user.QueryFilter{Search: "ahmadi"}, []string{"u1"}},
		{"search email", user.QueryFilter{Search: "omid@"}, []string{"u2"}},
		{"no match", user.QueryFilter{Search: "nobody"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FilterProfiles(ctx, tt.filter)
			assert.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			if tt.wantIDs == nil {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.wantIDs, ids)
			}
		})
	}
}
