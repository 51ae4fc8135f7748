package secret

import (
	"context"
	"strings"
	"testing"
)

// Parámetros chicos para que la suite no pague 64 MiB por cómputo.
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHashVerify_RoundTrip(t *testing.T) {
	encoded, err := Hash(testParams, "s3cr3t-value")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected encoding: %q", encoded)
	}
	if !Verify(testParams, "s3cr3t-value", encoded) {
		t.Fatal("expected verify to succeed for correct secret")
	}
	if Verify(testParams, "wrong", encoded) {
		t.Fatal("expected verify to fail for wrong secret")
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	a, err := Hash(testParams, "same-input")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	b, err := Hash(testParams, "same-input")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same input must differ (random salt)")
	}
	// ambos deben seguir verificando
	if !Verify(testParams, "same-input", a) || !Verify(testParams, "same-input", b) {
		t.Fatal("both encodings must verify")
	}
}

func TestHash_EmptySecret(t *testing.T) {
	if _, err := Hash(testParams, ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestVerify_MalformedEncoding(t *testing.T) {
	malformed := []string{
		"",
		"plain-text",
		"$argon2id$only-two",
		"$argon2i$AAAA$BBBB",            // algoritmo equivocado
		"$argon2id$!!notb64!!$AAAAAAA=", // salt inválido
	}
	for _, enc := range malformed {
		if Verify(testParams, "whatever", enc) {
			t.Fatalf("expected verify=false for %q", enc)
		}
	}
}

func TestDummyHash_NeverVerifies(t *testing.T) {
	for _, plain := range []string{"", "a", "secret", "AAAAAAAA"} {
		if Verify(Default, plain, DummyHash) {
			t.Fatalf("dummy hash must never verify, got true for %q", plain)
		}
	}
}

func TestHasher_RespectsCanceledContext(t *testing.T) {
	h := NewHasher(testParams, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "x"); err == nil {
		t.Fatal("expected error hashing with canceled context")
	}
	if h.Verify(ctx, "x", DummyHash) {
		t.Fatal("verify with canceled context must return false")
	}
}

func TestHasher_HashVerifyThroughSemaphore(t *testing.T) {
	h := NewHasher(testParams, 2)
	ctx := context.Background()

	encoded, err := h.Hash(ctx, "pooled")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !h.Verify(ctx, "pooled", encoded) {
		t.Fatal("expected verify to succeed")
	}
}
