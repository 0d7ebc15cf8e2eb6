package auth

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestMintAndVerify(t *testing.T) {
	s := NewSigner("secret123", 5*time.Minute, 60)
	now := time.Now()
	tok, exp := s.Mint("abc", now)
	if !exp.After(now) {
		t.Fatalf("expiry %v not after %v", exp, now)
	}
	sid, err := s.Verify(tok, "abc", now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sid != "abc" {
		t.Fatalf("mismatch: %s", sid)
	}
	if sid, err := s.Verify(tok, "", now); err != nil || sid != "abc" {
		t.Fatalf("verify without expected id: %q %v", sid, err)
	}
}

func TestVerifyRejects(t *testing.T) {
	s := NewSigner("secret123", time.Minute, 10)
	now := time.Now()
	tok, _ := s.Mint("abc", now)

	other := NewSigner("other", time.Minute, 10)
	forged, _ := other.Mint("abc", now)

	cases := []struct {
		name  string
		token string
		sid   string
		at    time.Time
		want  error
	}{
		{"garbage", "%%%", "abc", now, ErrTokenFormat},
		{"two parts", base64.RawURLEncoding.EncodeToString([]byte("abc.123")), "abc", now, ErrTokenFormat},
		{"wrong session", tok, "xyz", now, ErrTokenSID},
		{"wrong secret", forged, "abc", now, ErrTokenSig},
		{"expired", tok, "abc", now.Add(2 * time.Minute), ErrTokenExp},
		{"within skew", tok, "abc", now.Add(time.Minute + 5*time.Second), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Verify(tc.token, tc.sid, tc.at)
			if err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	if NewSigner("", time.Minute, 0).Enabled() {
		t.Fatalf("empty secret should disable auth")
	}
	var nilSigner *Signer
	if nilSigner.Enabled() {
		t.Fatalf("nil signer should be disabled")
	}
	if !NewSigner("x", time.Minute, 0).Enabled() {
		t.Fatalf("secret should enable auth")
	}
}
