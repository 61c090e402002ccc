package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := GetConfig().ExchangeCRKey

	sealed, err := EncryptString("api-key:api-secret", key)
	require.NoError(t, err)
	assert.NotEqual(t, "api-key:api-secret", sealed)

	plain, err := DecryptString(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "api-key:api-secret", plain)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := GetConfig().ExchangeCRKey

	sealed, err := EncryptString("secret", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = DecryptString(base64.StdEncoding.EncodeToString(raw), key)
	assert.Error(t, err)
}

func TestDecryptRejectsBadKey(t *testing.T) {
	_, err := EncryptString("secret", "not-a-key")
	assert.Error(t, err)
}
