package github_test

import (
	"strings"
	"testing"

	"nitpick/internal/adapters/github"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	sig := github.Sign(body, "topsecret")

	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("header shape %q", sig)
	}
	if err := github.VerifySignature(body, sig, "topsecret"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifySignatureRejects(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	sig := github.Sign(body, "topsecret")

	if err := github.VerifySignature(body, sig, "other"); err == nil {
		t.Fatal("wrong secret must fail")
	}
	if err := github.VerifySignature([]byte(`{"action":"opened" }`), sig, "topsecret"); err == nil {
		t.Fatal("modified body must fail")
	}

	// single flipped hex digit
	flipped := []byte(sig)
	if flipped[len(flipped)-1] == 'a' {
		flipped[len(flipped)-1] = 'b'
	} else {
		flipped[len(flipped)-1] = 'a'
	}
	if err := github.VerifySignature(body, string(flipped), "topsecret"); err == nil {
		t.Fatal("flipped signature must fail")
	}

	if err := github.VerifySignature(body, strings.TrimPrefix(sig, "sha256="), "topsecret"); err == nil {
		t.Fatal("missing prefix must fail")
	}
	if err := github.VerifySignature(body, "sha256=zz", "topsecret"); err == nil {
		t.Fatal("bad hex must fail")
	}
	if err := github.VerifySignature(body, sig, ""); err == nil {
		t.Fatal("empty secret must fail")
	}
}
