package identity

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
)

// Token format: base64url(uid + "." + exp_unix + "." + hex(hmac_sha256(secret, uid+"."+exp)))
func signToken(secret []byte, uid string, exp time.Time) string {
	msg := uid + "." + strconv.FormatInt(exp.Unix(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(msg + "." + sign(secret, msg)))
}

// parseToken returns the uid of a well-signed, unexpired token.
func parseToken(secret []byte, token string, now time.Time) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrTokenFormat
	}
	// uid is a uuid and never contains a dot
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", ErrTokenFormat
	}
	uid, expStr, sigHex := parts[0], parts[1], parts[2]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrTokenFormat
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", ErrTokenFormat
	}
	want, _ := hex.DecodeString(sign(secret, uid+"."+expStr))
	if !hmac.Equal(want, got) {
		return "", ErrTokenSig
	}
	if now.Unix() > exp {
		return "", ErrTokenExp
	}
	return uid, nil
}

func sign(secret []byte, msg string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
