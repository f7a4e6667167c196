package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/farsihub/backend/core/user"
)

type userTable struct {
	mutex    sync.RWMutex
	table    map[string]*user.Profile
	watchers *watchRegistry
}

func newUserTable() *userTable {
	return &userTable{table: make(map[string]*user.Profile), watchers: newWatchRegistry()}
}

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	repo.db.mutex.Lock()
	if _, ok := repo.db.table[p.ID]; ok {
		repo.db.mutex.Unlock()
		return user.Profile{}, user.ErrExists
	}
	repo.db.table[p.ID] = &p
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return p, nil
}

func (repo *userRepository) GetProfileByID(ctx context.Context, id string) (user.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *userRepository) FilterProfiles(ctx context.Context, filter user.QueryFilter) ([]user.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var res []user.Profile
	for _, p := range repo.db.table {
		if matchProfile(*p, filter) {
			res = append(res, *p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func matchProfile(p user.Profile, filter user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(p.Name), s) && !strings.Contains(strings.ToLower(p.Email), s) {
			return false
		}
	}
	if filter.Role != "" && p.Role != filter.Role {
		return false
	}
	if filter.Approved != nil && p.Approved != *filter.Approved {
		return false
	}
	if filter.Year != "" && p.Year.String != filter.Year {
		return false
	}
	if !filter.CreatedFrom.IsZero() && p.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && p.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo *userRepository) UpdateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	repo.db.mutex.Lock()
	if _, ok := repo.db.table[p.ID]; !ok {
		repo.db.mutex.Unlock()
		return user.Profile{}, user.ErrNotFound
	}
	repo.db.table[p.ID] = &p
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return p, nil
}

func (repo *userRepository) DeleteProfileByID(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	delete(repo.db.table, id)
	repo.db.mutex.Unlock()

	repo.db.watchers.notify()
	return nil
}

func (repo *userRepository) WatchProfile(id string, onSnapshot func(p user.Profile, exists bool), onError func(error)) (unsubscribe func()) {
	return repo.db.watchers.subscribe(func() {
		p, err := repo.GetProfileByID(context.Background(), id)
		switch err {
		case nil:
			onSnapshot(p, true)
		case user.ErrNotFound:
			onSnapshot(user.Profile{}, false)
		default:
			onError(err)
		}
	})
}
