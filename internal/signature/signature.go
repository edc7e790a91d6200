// Package signature canonicalizes JSON payloads and signs or verifies
// them with Ed25519. An identity id is the lowercase hex encoding of
// the signer's public key, so verification needs no key registry.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidIdentity  = errors.New("invalid identity id")
)

// Canonicalize returns the RFC 8785 form of payload. Raw JSON is
// canonicalized as-is; any other value is marshaled first.
func Canonicalize(payload any) ([]byte, error) {
	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "marshal payload")
		}
		raw = b
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalize payload")
	}
	return out, nil
}

// PublicKey decodes an identity id into its Ed25519 public key.
func PublicKey(identityID string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(identityID)
	if err != nil || len(b) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrInvalidIdentity, "%q", identityID)
	}
	return ed25519.PublicKey(b), nil
}

// Verify reports whether signature is a valid signature of payload by
// the holder of identityID's private key. Malformed inputs yield false.
func Verify(payload any, identityID, signature string) bool {
	return Check(payload, identityID, signature) == nil
}

// Check is Verify with a reason. Every failure wraps ErrInvalidSignature.
func Check(payload any, identityID, signature string) error {
	pub, err := PublicKey(identityID)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return errors.Wrap(ErrInvalidSignature, "malformed signature")
	}
	msg, err := Canonicalize(payload)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	if !ed25519.Verify(pub, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature of payload's canonical form.
func Sign(payload any, key ed25519.PrivateKey) (string, error) {
	msg, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(key, msg)), nil
}

// KeyPair is a signing identity.
type KeyPair struct {
	ID         string
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh identity.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}
	return &KeyPair{ID: hex.EncodeToString(pub), PrivateKey: priv}, nil
}

// ParsePrivateKey accepts a hex-encoded 32-byte seed or 64-byte key.
func ParsePrivateKey(s string) (*KeyPair, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	var priv ed25519.PrivateKey
	switch len(b) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(b)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(b)
	default:
		return nil, errors.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{ID: hex.EncodeToString(pub), PrivateKey: priv}, nil
}

// Seed returns the hex-encoded seed of the key pair, the form accepted
// back by ParsePrivateKey.
func (k *KeyPair) Seed() string {
	return hex.EncodeToString(k.PrivateKey.Seed())
}
