package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSecretField(t *testing.T) {
	for _, f := range SecretFields {
		got, err := ParseSecretField(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	for _, bad := range []string{"", "id", "encryption_key", "ai_api_key; DROP TABLE users"} {
		_, err := ParseSecretField(bad)
		assert.Error(t, err, bad)
	}
}
