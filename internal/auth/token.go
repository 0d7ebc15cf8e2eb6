package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired")
	ErrTokenSID    = errors.New("session id mismatch")
)

// Signer mints and checks session tokens.
// Format: base64url(session_id + "." + exp_unix + "." + hex(hmac_sha256(secret, session_id+"."+exp)))
type Signer struct {
	secret []byte
	ttl    time.Duration
	skew   time.Duration
}

func NewSigner(secret string, ttl time.Duration, skewSeconds int) *Signer {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, skew: time.Duration(skewSeconds) * time.Second}
}

// Enabled reports whether a secret is configured. Without one the websocket
// accepts anonymous sessions.
func (s *Signer) Enabled() bool { return s != nil && len(s.secret) > 0 }

// Mint returns a token for sessionID valid for the signer's TTL from now.
func (s *Signer) Mint(sessionID string, now time.Time) (string, time.Time) {
	exp := now.Add(s.ttl).Truncate(time.Second)
	msg := sessionID + "." + strconv.FormatInt(exp.Unix(), 10)
	raw := msg + "." + hex.EncodeToString(s.sign(msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), exp
}

// Verify checks token against expectSessionID (empty accepts any) and
// returns the embedded session id.
func (s *Signer) Verify(token, expectSessionID string, now time.Time) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrTokenFormat
	}
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 {
		return "", ErrTokenFormat
	}
	sid, expStr, sigHex := parts[0], parts[1], parts[2]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrTokenFormat
	}
	if expectSessionID != "" && sid != expectSessionID {
		return "", ErrTokenSID
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", ErrTokenFormat
	}
	if !hmac.Equal(s.sign(sid+"."+expStr), got) {
		return "", ErrTokenSig
	}
	if now.Add(-s.skew).Unix() > exp {
		return "", ErrTokenExp
	}
	return sid, nil
}

func (s *Signer) sign(msg string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
