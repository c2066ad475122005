package inmemdb

import (
	"context"

	"github.com/trezcool/sistira/core/auth"
)

type tokenRepository struct {
	db *DB
}

var _ auth.Repository = (*tokenRepository)(nil) // interface compliance check

func NewTokenRepository(db *DB) auth.Repository {
	return &tokenRepository{db: db}
}

func (repo *tokenRepository) GetToken(_ context.Context, key string) (auth.Token, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tkn, ok := repo.db.tokens[key]; ok {
		return tkn, nil
	}
	return auth.Token{}, auth.ErrNotFound
}

func (repo *tokenRepository) GetTokenByUser(_ context.Context, userID string) (auth.Token, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tkn := range repo.db.tokens {
		if tkn.UserID == userID {
			return tkn, nil
		}
	}
	return auth.Token{}, auth.ErrNotFound
}

func (repo *tokenRepository) CreateToken(_ context.Context, tkn auth.Token) (auth.Token, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for key, t := range repo.db.tokens {
		if t.UserID == tkn.UserID {
			delete(repo.db.tokens, key)
		}
	}
	repo.db.tokens[tkn.Key] = tkn
	return tkn, nil
}

func (repo *tokenRepository) DeleteToken(_ context.Context, key string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tokens[key]; !ok {
		return auth.ErrNotFound
	}
	delete(repo.db.tokens, key)
	return nil
}
