package vault

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
)

// memStore is an in-memory Store that counts key writes.
type memStore struct {
	mu        sync.Mutex
	keys      map[string]*models.WrappedKey
	fields    map[string]map[models.SecretField][]byte
	keyWrites int
	err       error
}

func newMemStore() *memStore {
	return &memStore{
		keys:   make(map[string]*models.WrappedKey),
		fields: make(map[string]map[models.SecretField][]byte),
	}
}

func (s *memStore) GetWrappedKey(_ context.Context, userID string) (*models.WrappedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	wk, ok := s.keys[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *wk
	return &cp, nil
}

func (s *memStore) PutWrappedKey(_ context.Context, key *models.WrappedKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.keys[key.UserID]; ok {
		return false, nil
	}
	cp := *key
	s.keys[key.UserID] = &cp
	s.keyWrites++
	return true, nil
}

func (s *memStore) ReplaceWrappedKey(_ context.Context, key *models.WrappedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.keys[key.UserID]; !ok {
		return common.ErrorNotFound
	}
	cp := *key
	s.keys[key.UserID] = &cp
	return nil
}

func (s *memStore) ListWrappedKeys(_ context.Context) ([]*models.WrappedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*models.WrappedKey, 0, len(s.keys))
	for _, wk := range s.keys {
		cp := *wk
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memStore) GetCiphertext(_ context.Context, userID string, field models.SecretField) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	blob, ok := s.fields[userID][field]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (s *memStore) PutCiphertext(_ context.Context, userID string, field models.SecretField, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.fields[userID] == nil {
		s.fields[userID] = make(map[models.SecretField][]byte)
	}
	s.fields[userID][field] = append([]byte(nil), blob...)
	return nil
}

func (s *memStore) ClearCiphertext(_ context.Context, userID string, field models.SecretField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.fields[userID], field)
	return nil
}

func (s *memStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	_, hasKey := s.keys[userID]
	_, hasFields := s.fields[userID]
	if !hasKey && !hasFields {
		return common.ErrorNotFound
	}
	delete(s.keys, userID)
	delete(s.fields, userID)
	return nil
}

// flip corrupts one byte of a stored field value.
func (s *memStore) flip(userID string, field models.SecretField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := s.fields[userID][field]
	blob[len(blob)/2] ^= 0x01
}

func (s *memStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
