// Package vault implements per-user envelope encryption of secrets at rest.
//
// Every user gets a random 32-byte key. That key is stored only wrapped by a
// key-encryption key derived from the process master key, and it encrypts
// the user's secret fields. The master key never encrypts a secret directly.
//
// A Vault keeps no per-user state: each call reads the wrapped key from the
// Store and unwraps it again, so one Vault is safe for concurrent use and
// several processes may share one database.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/cryptox"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
)

const kekInfo = "sbetterfy/vault/kek/v1"

// Store is the persistence contract of the vault. Missing users or unset
// values are reported as common.ErrorNotFound and undecodable stored text
// as common.ErrorCorrupt.
type Store interface {
	GetWrappedKey(ctx context.Context, userID string) (*models.WrappedKey, error)
	// PutWrappedKey must only store key when the user has none and report
	// whether it did.
	PutWrappedKey(ctx context.Context, key *models.WrappedKey) (bool, error)
	ReplaceWrappedKey(ctx context.Context, key *models.WrappedKey) error
	// ListWrappedKeys reports a row whose key does not decode through
	// WrappedKey.Err instead of failing the listing.
	ListWrappedKeys(ctx context.Context) ([]*models.WrappedKey, error)

	GetCiphertext(ctx context.Context, userID string, field models.SecretField) ([]byte, error)
	// PutCiphertext creates the user row when it does not exist yet.
	PutCiphertext(ctx context.Context, userID string, field models.SecretField, blob []byte) error
	ClearCiphertext(ctx context.Context, userID string, field models.SecretField) error

	Delete(ctx context.Context, userID string) error
}

// TxStore is a Store that can run a batch of calls atomically.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

type Vault struct {
	kek      []byte
	masterFP string
	store    Store
	logger   logging.Logger
	observer Observer
	now      func() time.Time
}

type Option func(*Vault)

func WithLogger(l logging.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

func WithObserver(o Observer) Option {
	return func(v *Vault) { v.observer = o }
}

// New builds a Vault around masterKey. The master key itself is not
// retained; only the derived key-encryption key is.
func New(masterKey []byte, store Store, opts ...Option) (*Vault, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrConfiguration)
	}
	kek, err := cryptox.DeriveKey(masterKey, kekInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: master key: %v", ErrConfiguration, err)
	}

	v := &Vault{
		kek:      kek,
		masterFP: cryptox.Fingerprint(masterKey),
		store:    store,
		logger:   logging.Nop{},
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// MasterFingerprint identifies the master key this vault wraps keys with.
func (v *Vault) MasterFingerprint() string {
	return v.masterFP
}

// Cipher encrypts and decrypts the fields of one user.
type Cipher struct {
	userID string
	key    []byte
}

func fieldAAD(userID string, field models.SecretField) []byte {
	aad := make([]byte, 0, len(userID)+1+len(field))
	aad = append(aad, userID...)
	aad = append(aad, 0)
	return append(aad, field...)
}

// Encrypt seals plaintext for field. The ciphertext only opens for the same
// user and field.
func (c *Cipher) Encrypt(field models.SecretField, plaintext string) ([]byte, error) {
	return cryptox.Seal(c.key, []byte(plaintext), fieldAAD(c.userID, field))
}

func (c *Cipher) Decrypt(field models.SecretField, blob []byte) (string, error) {
	b, err := cryptox.Open(c.key, blob, fieldAAD(c.userID, field))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// KeyFingerprint identifies the user key without revealing it.
func (c *Cipher) KeyFingerprint() string {
	return cryptox.Fingerprint(c.key)
}

// track starts timing op; the returned func reports the outcome held in
// *err.
func (v *Vault) track(op string) func(*error) {
	start := v.now()
	return func(err *error) {
		v.observer.ObserveOperation(op, outcomeOf(*err), v.now().Sub(start))
	}
}

func validUser(userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	return nil
}

func validField(field models.SecretField) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

// UserCipher returns the cipher of userID, creating and persisting a new
// user key on first use. Concurrent first calls converge on a single key.
func (v *Vault) UserCipher(ctx context.Context, userID string) (c *Cipher, err error) {
	defer v.track("user_cipher")(&err)
	return v.userCipher(ctx, userID, true)
}

func (v *Vault) userCipher(ctx context.Context, userID string, create bool) (*Cipher, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}

	wk, err := v.store.GetWrappedKey(ctx, userID)
	switch {
	case err == nil:
		return v.unwrap(ctx, wk)
	case errors.Is(err, common.ErrorCorrupt):
		return nil, fmt.Errorf("%w: user key: %v", ErrUnreadable, err)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, storeErr("get user key", err)
	case !create:
		return nil, ErrAbsent
	}

	key := cryptox.GenerateKey()
	wrapped, err := cryptox.Seal(v.kek, key, []byte(userID))
	if err != nil {
		return nil, err
	}

	stored, err := v.store.PutWrappedKey(ctx, &models.WrappedKey{
		UserID:      userID,
		Ciphertext:  wrapped,
		Fingerprint: v.masterFP,
	})
	if err != nil {
		common.WipeByteArray(key)
		return nil, storeErr("put user key", err)
	}
	if stored {
		v.logger.Info(ctx, "created user key", "user_id", userID)
		return &Cipher{userID: userID, key: key}, nil
	}

	// Another writer stored a key first; use theirs.
	common.WipeByteArray(key)
	wk, err = v.store.GetWrappedKey(ctx, userID)
	if err != nil {
		return nil, storeErr("get user key", err)
	}
	return v.unwrap(ctx, wk)
}

func (v *Vault) unwrap(ctx context.Context, wk *models.WrappedKey) (*Cipher, error) {
	key, err := cryptox.Open(v.kek, wk.Ciphertext, []byte(wk.UserID))
	if err != nil {
		if wk.Fingerprint != "" && wk.Fingerprint != v.masterFP {
			v.logger.Warn(ctx, "user key wrapped by another master key",
				"user_id", wk.UserID, "key_fingerprint", wk.Fingerprint, "current_fingerprint", v.masterFP)
		}
		return nil, fmt.Errorf("%w: user key: %v", ErrUnreadable, err)
	}
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: user key has %d bytes", ErrUnreadable, len(key))
	}
	return &Cipher{userID: wk.UserID, key: key}, nil
}

// replaceUserKey gives userID a fresh key after the stored one stopped
// unwrapping. Every value sealed under the old key is cleared since it can
// never be read again. Runs in one transaction when the store supports it.
func (v *Vault) replaceUserKey(ctx context.Context, userID string) (*Cipher, error) {
	var c *Cipher
	run := func(ctx context.Context, s Store) error {
		wk, err := s.GetWrappedKey(ctx, userID)
		switch {
		case err == nil:
			// A concurrent writer may have replaced it already.
			if key, err := cryptox.Open(v.kek, wk.Ciphertext, []byte(userID)); err == nil && len(key) == cryptox.KeySize {
				c = &Cipher{userID: userID, key: key}
				return nil
			}
		case errors.Is(err, common.ErrorCorrupt):
		default:
			return storeErr("get user key", err)
		}

		key := cryptox.GenerateKey()
		wrapped, err := cryptox.Seal(v.kek, key, []byte(userID))
		if err != nil {
			common.WipeByteArray(key)
			return err
		}
		err = s.ReplaceWrappedKey(ctx, &models.WrappedKey{UserID: userID, Ciphertext: wrapped, Fingerprint: v.masterFP})
		if err != nil {
			common.WipeByteArray(key)
			return storeErr("replace user key", err)
		}
		for _, f := range models.SecretFields {
			if err := s.ClearCiphertext(ctx, userID, f); err != nil {
				common.WipeByteArray(key)
				return storeErr("clear "+string(f), err)
			}
		}
		v.logger.Warn(ctx, "replaced unreadable user key, stored secrets discarded",
			"user_id", userID, "current_fingerprint", v.masterFP)
		c = &Cipher{userID: userID, key: key}
		return nil
	}

	var err error
	if ts, ok := v.store.(TxStore); ok {
		err = ts.InTx(ctx, run)
	} else {
		err = run(ctx, v.store)
	}
	if err != nil {
		if c != nil {
			common.WipeByteArray(c.key)
		}
		return nil, err
	}
	return c, nil
}

// EncryptField stores plaintext in field for userID, replacing any previous
// value. The user record and key are created on first write. When the
// stored key no longer unwraps the user gets a new key and loses the values
// sealed under the old one, so re-entering a secret always works.
func (v *Vault) EncryptField(ctx context.Context, userID string, field models.SecretField, plaintext string) (err error) {
	defer v.track("encrypt")(&err)

	if err := validField(field); err != nil {
		return err
	}
	c, err := v.userCipher(ctx, userID, true)
	if errors.Is(err, ErrUnreadable) {
		c, err = v.replaceUserKey(ctx, userID)
	}
	if err != nil {
		return err
	}
	defer common.WipeByteArray(c.key)

	blob, err := c.Encrypt(field, plaintext)
	if err != nil {
		return err
	}
	if err := v.store.PutCiphertext(ctx, userID, field, blob); err != nil {
		return storeErr("put "+string(field), err)
	}
	return nil
}

// DecryptField returns the plaintext of field. It fails with ErrAbsent when
// nothing is stored and with ErrUnreadable when the stored value does not
// decrypt.
func (v *Vault) DecryptField(ctx context.Context, userID string, field models.SecretField) (plaintext string, err error) {
	defer v.track("decrypt")(&err)

	if err := validUser(userID); err != nil {
		return "", err
	}
	if err := validField(field); err != nil {
		return "", err
	}

	blob, err := v.store.GetCiphertext(ctx, userID, field)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return "", ErrAbsent
	case errors.Is(err, common.ErrorCorrupt):
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, field, err)
	case err != nil:
		return "", storeErr("get "+string(field), err)
	}

	c, err := v.userCipher(ctx, userID, false)
	if err != nil {
		if errors.Is(err, ErrAbsent) {
			// A value without a key can never be decrypted.
			return "", fmt.Errorf("%w: %s: user key missing", ErrUnreadable, field)
		}
		return "", err
	}
	defer common.WipeByteArray(c.key)

	plaintext, err = c.Decrypt(field, blob)
	if err != nil {
		v.logger.Warn(ctx, "stored secret does not decrypt", "user_id", userID, "field", string(field), "error", err)
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, field, err)
	}
	return plaintext, nil
}

// HasField reports whether a value is stored for field without decrypting
// it. A missing user is not an error.
func (v *Vault) HasField(ctx context.Context, userID string, field models.SecretField) (ok bool, err error) {
	defer v.track("has")(&err)

	if err := validField(field); err != nil {
		return false, err
	}
	if userID == "" {
		return false, nil
	}

	_, err = v.store.GetCiphertext(ctx, userID, field)
	switch {
	case err == nil, errors.Is(err, common.ErrorCorrupt):
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, storeErr("get "+string(field), err)
	}
}
