package crypto

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func loadTestKey(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/key1024.pem")
	require.NoError(t, err)
	return raw
}

func TestParseKeysFromPEM(t *testing.T) {
	raw := loadTestKey(t)
	priv, err := ParsePrivateKeyPEM(raw)
	require.NoError(t, err)
	require.Equal(t, 1024, priv.N.BitLen())
	require.Equal(t, 65537, priv.E)

	pub, err := ParsePublicKeyPEM(raw)
	require.NoError(t, err)
	require.Equal(t, 0, pub.N.Cmp(priv.N))
}

func TestParsePEMErrors(t *testing.T) {
	_, err := ParsePrivateKeyPEM([]byte("not pem"))
	require.Error(t, err)
	_, err = ParsePublicKeyPEM([]byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"))
	require.Error(t, err)
}

func TestModulusLERoundTrip(t *testing.T) {
	priv, err := ParsePrivateKeyPEM(loadTestKey(t))
	require.NoError(t, err)

	le, err := ModulusLE(&priv.PublicKey, 128)
	require.NoError(t, err)
	require.Len(t, le, 128)

	pub, err := PublicKeyFromLE(uint32(priv.E), le)
	require.NoError(t, err)
	require.Equal(t, 0, pub.N.Cmp(priv.N))

	_, err = ModulusLE(&priv.PublicKey, 64)
	require.Error(t, err)
}

func TestPublicKeyFromLERejectsBadInputs(t *testing.T) {
	_, err := PublicKeyFromLE(65537, make([]byte, 128))
	require.Error(t, err)
	_, err = PublicKeyFromLE(1, []byte{1, 2, 3})
	require.Error(t, err)
	_, err = PublicKeyFromLE(65536, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestSignVerifySHA256(t *testing.T) {
	priv, err := ParsePrivateKeyPEM(loadTestKey(t))
	require.NoError(t, err)
	msg := []byte("0123456789abcdef0123456789abcdef")

	sig, err := SignSHA256(priv, msg)
	require.NoError(t, err)
	require.Len(t, sig, 128)

	p := StdProvider{}
	require.True(t, p.VerifyRSASHA256(&priv.PublicKey, sig, msg))

	sig[5] ^= 0x01
	require.False(t, p.VerifyRSASHA256(&priv.PublicKey, sig, msg))
}

func TestReverseBytes(t *testing.T) {
	require.Equal(t, []byte{3, 2, 1}, ReverseBytes([]byte{1, 2, 3}))
	require.Empty(t, ReverseBytes(nil))
}
