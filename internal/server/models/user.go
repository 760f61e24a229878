package models

import "time"

// WrappedKey is a per-user key encrypted under the master key. Fingerprint
// identifies the master key that produced Ciphertext.
type WrappedKey struct {
	UserID      string
	Ciphertext  []byte
	Fingerprint string
	// Err is set by listings when the stored text did not decode; Ciphertext
	// is nil then.
	Err error
}

// UserRecord is a full row of the users table. It only ever carries
// ciphertext; nothing here is usable without the master key.
type UserRecord struct {
	ID             string                 `json:"id"`
	WrappedKey     []byte                 `json:"wrapped_key,omitempty"`
	KeyFingerprint string                 `json:"key_fingerprint,omitempty"`
	Fields         map[SecretField][]byte `json:"fields,omitempty"`
	// Raw holds, by column name, stored text that did not decode. It is
	// kept verbatim so a backup loses nothing.
	Raw       map[string]string `json:"raw,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// KeepRaw records undecodable text of column.
func (r *UserRecord) KeepRaw(column, text string) {
	if r.Raw == nil {
		r.Raw = make(map[string]string)
	}
	r.Raw[column] = text
}
