package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
)

const (
	SchemeHMACSHA256 = "hmac-sha256"
	SchemeHMACSHA512 = "hmac-sha512"
)

// DigestStrategy signs the outbound payment request and verifies callback
// integrity. Gateways vary in the algorithm they expect, so the scheme is
// pluggable and chosen from configuration.
type DigestStrategy interface {
	Name() string
	Sign(secret string, fields []string) string
	Verify(secret string, fields []string, digest string) bool
}

// NewDigestStrategy resolves a strategy by scheme name.
func NewDigestStrategy(scheme string) (DigestStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeHMACSHA256:
		return hmacStrategy{name: SchemeHMACSHA256}, nil
	case SchemeHMACSHA512:
		return hmacStrategy{name: SchemeHMACSHA512}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unsupported digest scheme").
			WithDetails(map[string]any{"scheme": scheme})
	}
}

type hmacStrategy struct {
	name string
}

func (s hmacStrategy) Name() string {
	return s.name
}

// Sign computes the hex digest over the fields joined with "|". Field order
// is part of the contract with the gateway and must never change.
func (s hmacStrategy) Sign(secret string, fields []string) string {
	payload := strings.Join(fields, "|")
	if s.name == SchemeHMACSHA512 {
		mac := hmac.New(sha512.New, []byte(secret))
		mac.Write([]byte(payload))
		return hex.EncodeToString(mac.Sum(nil))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s hmacStrategy) Verify(secret string, fields []string, digest string) bool {
	if digest == "" || secret == "" {
		return false
	}
	expected := s.Sign(secret, fields)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(digest)))
}
