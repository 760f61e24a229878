package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
)

type fakeVault struct {
	mu         sync.Mutex
	values     map[string]string
	loadErr    error
	unreadable map[string]bool
}

func newFakeVault() *fakeVault {
	return &fakeVault{values: map[string]string{}, unreadable: map[string]bool{}}
}

func fkey(userID string, f models.SecretField) string { return userID + "/" + string(f) }

func (v *fakeVault) SaveSecret(_ context.Context, userID string, f models.SecretField, plaintext string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[fkey(userID, f)] = plaintext
	delete(v.unreadable, fkey(userID, f))
	return nil
}

func (v *fakeVault) LoadSecret(_ context.Context, userID string, f models.SecretField) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr != nil && v.unreadable[fkey(userID, f)] {
		return "", false, v.loadErr
	}
	value, ok := v.values[fkey(userID, f)]
	return value, ok, nil
}

func (v *fakeVault) HasSecret(_ context.Context, userID string, f models.SecretField) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.values[fkey(userID, f)]
	return ok
}

func (v *fakeVault) ClearSecret(_ context.Context, userID string, f models.SecretField) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.values, fkey(userID, f))
	return nil
}

func (v *fakeVault) get(userID string, f models.SecretField) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok := v.values[fkey(userID, f)]
	return value, ok
}
