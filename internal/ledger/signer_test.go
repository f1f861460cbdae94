package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/blake2b"
)

func testSeed() []byte {
	return bytes.Repeat([]byte{7}, ed25519.SeedSize)
}

func TestParseSecretKeyFormats(t *testing.T) {
	seed := testSeed()
	want, err := NewSigner(seed)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	bech, err := EncodeSecretKey(seed)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(bech, "suiprivkey1") {
		t.Fatalf("unexpected bech32 key %q", bech)
	}

	full := ed25519.NewKeyFromSeed(seed)
	inputs := map[string]string{
		"bech32":     bech,
		"seed":       base64.StdEncoding.EncodeToString(seed),
		"flagged":    base64.StdEncoding.EncodeToString(append([]byte{0}, seed...)),
		"expanded":   base64.StdEncoding.EncodeToString(full),
		"whitespace": "  " + bech + "\n",
	}
	for name, input := range inputs {
		got, err := ParseSecretKey(input)
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		if got.Address() != want.Address() {
			t.Fatalf("%s: expected address %s, got %s", name, want.Address(), got.Address())
		}
	}
}

func TestParseSecretKeyRejectsInvalid(t *testing.T) {
	inputs := []string{
		"",
		"not a key",
		base64.StdEncoding.EncodeToString([]byte("short")),
		base64.StdEncoding.EncodeToString(append([]byte{1}, testSeed()...)),
		"suiprivkey1qqqqqq",
	}
	for _, input := range inputs {
		if _, err := ParseSecretKey(input); !errors.Is(err, ErrSignerMisconfigured) {
			t.Fatalf("input %q: expected ErrSignerMisconfigured, got %v", input, err)
		}
	}
}

func TestSignerAddressFormat(t *testing.T) {
	s, err := NewSigner(testSeed())
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	addr := s.Address()
	if !strings.HasPrefix(addr, "0x") || len(addr) != 66 {
		t.Fatalf("unexpected address %q", addr)
	}
}

func TestSignTransactionVerifies(t *testing.T) {
	s, err := NewSigner(testSeed())
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	tx := []byte("transaction bytes")
	raw, err := base64.StdEncoding.DecodeString(s.SignTransaction(tx))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize {
		t.Fatalf("unexpected signature length %d", len(raw))
	}
	if raw[0] != 0 {
		t.Fatalf("unexpected scheme flag %d", raw[0])
	}
	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])

	digest := blake2b.Sum256(append([]byte{0, 0, 0}, tx...))
	if !ed25519.Verify(pub, digest[:], sig) {
		t.Fatalf("signature does not verify")
	}
}

func TestFullnodeURL(t *testing.T) {
	u, err := FullnodeURL("")
	if err != nil || u != "https://fullnode.testnet.sui.io:443" {
		t.Fatalf("unexpected default url %q err=%v", u, err)
	}
	if _, err := FullnodeURL("moonnet"); err == nil {
		t.Fatalf("expected error for unknown network")
	}
}
