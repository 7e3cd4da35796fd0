package encryption

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestManager_SealOpenRoundTrip(t *testing.T) {
	for _, ct := range []CipherType{CipherChaCha20Poly1305, CipherXChaCha20Poly1305, CipherAES256GCM} {
		t.Run(string(ct), func(t *testing.T) {
			m, err := NewManager(ct, newKey(t))
			require.NoError(t, err)
			require.Equal(t, ct, m.CipherType())

			sealed, err := m.Seal("correct horse battery staple")
			require.NoError(t, err)
			require.True(t, IsSealed(sealed))
			require.NotContains(t, sealed, "horse")

			opened, err := m.Open(sealed)
			require.NoError(t, err)
			require.Equal(t, "correct horse battery staple", opened)
		})
	}
}

func TestManager_SealUsesFreshNonce(t *testing.T) {
	m, err := NewManager(CipherChaCha20Poly1305, newKey(t))
	require.NoError(t, err)

	a, err := m.Seal("same")
	require.NoError(t, err)
	b, err := m.Seal("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestManager_OpenRejectsForeignValues(t *testing.T) {
	m, err := NewManager(CipherChaCha20Poly1305, newKey(t))
	require.NoError(t, err)

	_, err = m.Open("plain")
	require.ErrorIs(t, err, ErrNotSealed)

	_, err = m.Open(SealedPrefix + "!!!")
	require.Error(t, err)

	_, err = m.Open(SealedPrefix + "AAAA")
	require.Error(t, err)
}

func TestManager_OpenWithWrongKeyFails(t *testing.T) {
	a, err := NewManager(CipherChaCha20Poly1305, newKey(t))
	require.NoError(t, err)
	b, err := NewManager(CipherChaCha20Poly1305, newKey(t))
	require.NoError(t, err)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "open:"))
}

func TestNewCipher_Errors(t *testing.T) {
	_, err := NewCipher(CipherChaCha20Poly1305, []byte("short"))
	require.Error(t, err)

	_, err = NewCipher("rot13", newKey(t))
	require.Error(t, err)
}
