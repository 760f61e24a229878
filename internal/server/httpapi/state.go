package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

const (
	// stateMaxAge bounds the time between the connect redirect and the
	// callback.
	stateMaxAge = 10 * time.Minute
	stateSkew   = time.Minute
)

// signValue appends an HMAC of value: value|signature.
func signValue(value string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return value + "|" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verifyValue returns the value of a string produced by signValue with the
// same key.
func verifyValue(signed string, key []byte) (string, bool) {
	i := strings.LastIndex(signed, "|")
	if i < 0 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	if !hmac.Equal(mac.Sum(nil), got) {
		return "", false
	}
	return value, true
}

// encodeState packs the OAuth state, the user id and the issue time as
// state.base64url(userID).unix.
func encodeState(state, userID string, issued time.Time) string {
	return state + "." + base64.RawURLEncoding.EncodeToString([]byte(userID)) + "." +
		strconv.FormatInt(issued.Unix(), 10)
}

// decodeState reverses encodeState and rejects values older than
// stateMaxAge or issued in the future.
func decodeState(value string, now time.Time) (state, userID string, ok bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(raw) == 0 {
		return "", "", false
	}
	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", false
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > stateMaxAge || age < -stateSkew {
		return "", "", false
	}
	return parts[0], string(raw), true
}
