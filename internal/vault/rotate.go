package vault

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/cryptox"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
)

// RotationFailure is a user key that could not be re-wrapped.
type RotationFailure struct {
	UserID      string
	Fingerprint string
	Err         error
}

type RotationReport struct {
	NewFingerprint string
	Total          int
	Rewrapped      int
	// AlreadyCurrent counts keys that were wrapped by the new master key.
	AlreadyCurrent int
	Failed         []RotationFailure
}

// RotateMasterKey re-wraps every stored user key under newMaster. Field
// ciphertexts are not touched. Keys that do not unwrap under the current
// master key are left as they are and listed in the report.
//
// With a TxStore all replacements happen in one transaction. The vault
// keeps using its old master key; callers restart with newMaster once the
// rotation succeeded.
func (v *Vault) RotateMasterKey(ctx context.Context, newMaster []byte) (report RotationReport, err error) {
	defer v.track("rotate")(&err)

	newKEK, err := cryptox.DeriveKey(newMaster, kekInfo)
	if err != nil {
		return report, fmt.Errorf("%w: new master key: %v", ErrConfiguration, err)
	}
	defer common.WipeByteArray(newKEK)
	newFP := cryptox.Fingerprint(newMaster)

	run := func(ctx context.Context, s Store) error {
		report = RotationReport{NewFingerprint: newFP}

		keys, err := s.ListWrappedKeys(ctx)
		if err != nil {
			return storeErr("list user keys", err)
		}
		report.Total = len(keys)

		for _, wk := range keys {
			if wk.Err != nil {
				report.Failed = append(report.Failed, RotationFailure{UserID: wk.UserID, Fingerprint: wk.Fingerprint, Err: wk.Err})
				continue
			}
			aad := []byte(wk.UserID)
			if wk.Fingerprint == newFP {
				if _, err := cryptox.Open(newKEK, wk.Ciphertext, aad); err == nil {
					report.AlreadyCurrent++
					continue
				}
			}

			key, err := cryptox.Open(v.kek, wk.Ciphertext, aad)
			if err != nil {
				report.Failed = append(report.Failed, RotationFailure{UserID: wk.UserID, Fingerprint: wk.Fingerprint, Err: err})
				continue
			}
			wrapped, err := cryptox.Seal(newKEK, key, aad)
			common.WipeByteArray(key)
			if err != nil {
				return err
			}

			err = s.ReplaceWrappedKey(ctx, &models.WrappedKey{UserID: wk.UserID, Ciphertext: wrapped, Fingerprint: newFP})
			if err != nil {
				return storeErr("replace user key", err)
			}
			report.Rewrapped++
		}
		return nil
	}

	if ts, ok := v.store.(TxStore); ok {
		err = ts.InTx(ctx, run)
	} else {
		err = run(ctx, v.store)
	}
	if err != nil {
		return report, err
	}

	v.logger.Info(ctx, "master key rotation finished",
		"from", v.masterFP, "to", newFP,
		"total", report.Total, "rewrapped", report.Rewrapped,
		"already_current", report.AlreadyCurrent, "failed", len(report.Failed))
	return report, nil
}
