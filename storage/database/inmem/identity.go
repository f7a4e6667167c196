package inmemdb

import (
	"context"
	"sync"

	"github.com/farsihub/backend/core/identity"
)

type identityTable struct {
	mutex sync.RWMutex
	table map[string]*identity.Identity
}

func newIdentityTable() *identityTable {
	return &identityTable{table: make(map[string]*identity.Identity)}
}

type identityRepository struct {
	db *identityTable
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *DB) *identityRepository {
	return &identityRepository{db: db.identity}
}

func (repo *identityRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, idn := range repo.db.table {
		if idn.Email == email {
			return identity.ErrEmailExists
		}
	}
	return nil
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, idn identity.Identity) (identity.Identity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[idn.ID] = &idn
	return idn, nil
}

func (repo *identityRepository) GetIdentityByID(ctx context.Context, id string) (identity.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if idn, ok := repo.db.table[id]; ok {
		return *idn, nil
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) GetIdentityByEmail(ctx context.Context, email string) (identity.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, idn := range repo.db.table {
		if idn.Email == email {
			return *idn, nil
		}
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, idn identity.Identity) (identity.Identity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[idn.ID]; !ok {
		return identity.Identity{}, identity.ErrNotFound
	}
	repo.db.table[idn.ID] = &idn
	return idn, nil
}

func (repo *identityRepository) DeleteIdentityByID(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.table, id)
	return nil
}
