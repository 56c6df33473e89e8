package blob

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSignedURLRoundTrip(t *testing.T) {
	p := NewPresigner("sekrit", "http://localhost:8080/")
	key := "u1/t1/1700000000000_receipt.jpg"

	signed := p.SignedURL(key, time.Hour)
	if !strings.HasPrefix(signed, "http://localhost:8080/files/") {
		t.Fatalf("unexpected url prefix: %s", signed)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	gotKey, err := url.PathUnescape(strings.TrimPrefix(parsed.Path, "/files/"))
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}
	if gotKey != key {
		t.Fatalf("expected key %q in path, got %q", key, gotKey)
	}

	q := parsed.Query()
	if err := p.Verify(key, q.Get("expires"), q.Get("signature")); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	p := NewPresigner("sekrit", "http://localhost:8080")
	key := "u1/t1/file.jpg"

	signed := p.SignedURL(key, -time.Minute)
	q := mustQuery(t, signed)
	if err := p.Verify(key, q.Get("expires"), q.Get("signature")); err == nil {
		t.Fatal("expected expired url to be rejected")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	p := NewPresigner("sekrit", "http://localhost:8080")
	key := "u1/t1/file.jpg"

	signed := p.SignedURL(key, time.Hour)
	q := mustQuery(t, signed)

	t.Run("malformed expiry", func(t *testing.T) {
		if err := p.Verify(key, "not-a-number", q.Get("signature")); err == nil {
			t.Fatal("expected malformed expiry to be rejected")
		}
	})

	t.Run("altered signature", func(t *testing.T) {
		if err := p.Verify(key, q.Get("expires"), "deadbeef"); err == nil {
			t.Fatal("expected altered signature to be rejected")
		}
	})

	t.Run("different key", func(t *testing.T) {
		if err := p.Verify("u1/t1/other.jpg", q.Get("expires"), q.Get("signature")); err == nil {
			t.Fatal("expected signature to be bound to the key")
		}
	})

	t.Run("different secret", func(t *testing.T) {
		other := NewPresigner("another", "http://localhost:8080")
		if err := other.Verify(key, q.Get("expires"), q.Get("signature")); err == nil {
			t.Fatal("expected signature from another secret to be rejected")
		}
	})
}

func mustQuery(t *testing.T, rawURL string) url.Values {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %s: %v", rawURL, err)
	}
	return parsed.Query()
}
