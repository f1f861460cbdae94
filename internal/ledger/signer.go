package ledger

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

// ErrSignerMisconfigured reports an absent or malformed custodial key.
var ErrSignerMisconfigured = errors.New("signer misconfigured")

const (
	secretKeyPrefix = "suiprivkey"
	ed25519Flag     = 0x00
)

// transaction data intent: scope, version, app id
var transactionIntent = []byte{0, 0, 0}

// Signer holds the process custodial ed25519 key.
type Signer struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

// ParseSecretKey accepts a bech32 `suiprivkey1...` key or a base64 key of
// 32 bytes (seed), 33 bytes (flag + seed) or 64 bytes (seed + public key).
func ParseSecretKey(raw string) (*Signer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: secret key is empty", ErrSignerMisconfigured)
	}

	var seed []byte
	if strings.HasPrefix(strings.ToLower(raw), secretKeyPrefix+"1") {
		hrp, data, err := bech32.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decode bech32 key: %v", ErrSignerMisconfigured, err)
		}
		if hrp != secretKeyPrefix {
			return nil, fmt.Errorf("%w: unexpected key prefix %q", ErrSignerMisconfigured, hrp)
		}
		decoded, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return nil, fmt.Errorf("%w: decode bech32 key: %v", ErrSignerMisconfigured, err)
		}
		if len(decoded) != ed25519.SeedSize+1 {
			return nil, fmt.Errorf("%w: key payload has %d bytes", ErrSignerMisconfigured, len(decoded))
		}
		if decoded[0] != ed25519Flag {
			return nil, fmt.Errorf("%w: unsupported key scheme flag %d", ErrSignerMisconfigured, decoded[0])
		}
		seed = decoded[1:]
	} else {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: key is neither bech32 nor base64", ErrSignerMisconfigured)
		}
		switch len(decoded) {
		case ed25519.SeedSize:
			seed = decoded
		case ed25519.SeedSize + 1:
			if decoded[0] != ed25519Flag {
				return nil, fmt.Errorf("%w: unsupported key scheme flag %d", ErrSignerMisconfigured, decoded[0])
			}
			seed = decoded[1:]
		case ed25519.PrivateKeySize:
			seed = decoded[:ed25519.SeedSize]
		default:
			return nil, fmt.Errorf("%w: key has %d bytes", ErrSignerMisconfigured, len(decoded))
		}
	}

	return NewSigner(seed)
}

// NewSigner builds a signer from a 32-byte ed25519 seed.
func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes", ErrSignerMisconfigured, ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	h := blake2b.Sum256(append([]byte{ed25519Flag}, pub...))
	return &Signer{
		priv:    priv,
		pub:     pub,
		address: "0x" + hex.EncodeToString(h[:]),
	}, nil
}

// Address is the ledger account controlled by the key.
func (s *Signer) Address() string {
	return s.address
}

// SignTransaction returns the serialized signature for txBytes.
func (s *Signer) SignTransaction(txBytes []byte) string {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)
	sig := ed25519.Sign(s.priv, digest[:])

	out := make([]byte, 0, 1+len(sig)+len(s.pub))
	out = append(out, ed25519Flag)
	out = append(out, sig...)
	out = append(out, s.pub...)
	return base64.StdEncoding.EncodeToString(out)
}

// EncodeSecretKey renders seed in the bech32 `suiprivkey` form.
func EncodeSecretKey(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	return bech32.EncodeFromBase256(secretKeyPrefix, append([]byte{ed25519Flag}, seed...))
}
