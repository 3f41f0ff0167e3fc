package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Signer holds the merchant credentials shared with the provider. It is the
// security control for both outbound request signing and inbound callback
// verification.
type Signer struct {
	MerchantCode string
	PrivateKey   string
}

// Hmac256 returns the hex-encoded HMAC-SHA256 of body under key.
func Hmac256(body, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Sign produces the payment-intent request signature:
// HMAC-SHA256(merchantCode + merchantRef + amount).
func (s *Signer) Sign(merchantRef string, amount int64) string {
	payload := fmt.Sprintf("%s%s%d", s.MerchantCode, merchantRef, amount)
	return Hmac256([]byte(payload), []byte(s.PrivateKey))
}

// VerifyCallback authenticates an inbound callback. The provider signs the
// exact raw bytes of the body; older integrations signed a re-serialized
// JSON form or the ref/code/amount concatenations, so those are accepted as
// fallbacks. All candidates are computed even after a match candidate fails
// so the warning log can show the full drift picture.
func (s *Signer) VerifyCallback(rawBody, reserialized []byte, merchantRef string, amount int64, signature string) bool {
	key := []byte(s.PrivateKey)

	candidates := []string{
		Hmac256(rawBody, key),
		Hmac256(reserialized, key),
		Hmac256([]byte(fmt.Sprintf("%s%s%d", merchantRef, s.MerchantCode, amount)), key),
		Hmac256([]byte(fmt.Sprintf("%s%s%d", s.MerchantCode, merchantRef, amount)), key),
	}

	sig := []byte(signature)
	matched := false
	for _, candidate := range candidates {
		if hmac.Equal(sig, []byte(candidate)) {
			matched = true
		}
	}
	if !matched {
		slog.Warn("callback signature mismatch",
			"merchant_ref", merchantRef,
			"received", signature,
			"raw_body", candidates[0],
			"reserialized", candidates[1],
			"legacy_ref_code", candidates[2],
			"legacy_code_ref", candidates[3],
		)
	}
	return matched
}
