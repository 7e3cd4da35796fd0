package application

import (
	"testing"

	"github.com/stretchr/testify/require"
	"thirdcoast.systems/fetchd/internal/config"
)

const zeroKey = "0000000000000000000000000000000000000000000000000000000000000000"

func TestInitEncryptionManager_DefaultCipher(t *testing.T) {
	mgr, err := InitEncryptionManager(config.Config{EncryptionKey: zeroKey})
	require.NoError(t, err)
	require.NotNil(t, mgr)
}

func TestInitEncryptionManager_SpecificCiphers(t *testing.T) {
	for _, cipher := range []string{"chacha20-poly1305", "xchacha20-poly1305", "AES-256-GCM"} {
		t.Run(cipher, func(t *testing.T) {
			mgr, err := InitEncryptionManager(config.Config{EncryptionKey: zeroKey, EncryptionCipher: cipher})
			require.NoError(t, err)

			sealed, err := mgr.Seal("hunter2")
			require.NoError(t, err)
			opened, err := mgr.Open(sealed)
			require.NoError(t, err)
			require.Equal(t, "hunter2", opened)
		})
	}
}

func TestInitEncryptionManager_Errors(t *testing.T) {
	cases := map[string]config.Config{
		"missing key":        {},
		"invalid hex":        {EncryptionKey: "not-hex"},
		"wrong length":       {EncryptionKey: "deadbeef"},
		"unsupported cipher": {EncryptionKey: zeroKey, EncryptionCipher: "totally-not-a-cipher"},
	}
	for name, conf := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := InitEncryptionManager(conf)
			require.Error(t, err)
		})
	}
}
