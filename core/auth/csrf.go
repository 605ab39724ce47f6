package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// GenerateCSRF derives a per-session token from the server key, so the
// token survives restarts without storing extra secrets.
func GenerateCSRF(key, sessionID string) (string, error) {
	if key == "" || sessionID == "" {
		return "", errors.New("csrf: empty key or session id")
	}
	m := hmac.New(sha256.New, []byte(key))
	_, _ = m.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil)), nil
}

func VerifyCSRF(key, sessionID, token string) bool {
	want, err := GenerateCSRF(key, sessionID)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}
