package signature

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	a, err := Canonicalize(json.RawMessage(`{"b":1, "a":{"d":true,"c":[1,2]}}`))
	require.NoError(t, err)
	b, err := Canonicalize(map[string]any{"a": map[string]any{"c": []int{1, 2}, "d": true}, "b": 1})
	require.NoError(t, err)
	require.Equal(t, `{"a":{"c":[1,2],"d":true},"b":1}`, string(a))
	require.Equal(t, a, b)
}

func TestSignVerifyIndependentOfFieldOrder(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	sig, err := Sign(json.RawMessage(`{"type":"computeResource.getApps","timestamp":1700000000}`), kp.PrivateKey)
	require.NoError(t, err)

	require.True(t, Verify(json.RawMessage(`{"timestamp":1700000000,"type":"computeResource.getApps"}`), kp.ID, sig))
	require.False(t, Verify(json.RawMessage(`{"timestamp":1700000001,"type":"computeResource.getApps"}`), kp.ID, sig))
}

func TestVerifyRejectsOtherIdentity(t *testing.T) {
	payload := map[string]any{"type": "computeResource.getPendingJobs"}
	for i := 0; i < 5; i++ {
		a, err := GenerateKeyPair()
		require.NoError(t, err)
		b, err := GenerateKeyPair()
		require.NoError(t, err)

		sig, err := Sign(payload, a.PrivateKey)
		require.NoError(t, err)
		require.True(t, Verify(payload, a.ID, sig))
		require.False(t, Verify(payload, b.ID, sig))
	}
}

func TestCheckMalformedInputs(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	err = Check(map[string]any{}, "not-hex", "00")
	require.True(t, errors.Is(err, ErrInvalidSignature))

	err = Check(map[string]any{}, kp.ID, "zz")
	require.True(t, errors.Is(err, ErrInvalidSignature))

	err = Check(json.RawMessage(`{broken`), kp.ID, "00")
	require.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestParsePrivateKeyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := ParsePrivateKey(kp.Seed())
	require.NoError(t, err)
	require.Equal(t, kp.ID, parsed.ID)

	_, err = ParsePrivateKey("abcd")
	require.Error(t, err)
}
