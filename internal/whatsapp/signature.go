package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// verifySignature verifies the X-Hub-Signature-256 header value against
// the raw request body using HMAC-SHA256 with the app secret.
func verifySignature(body []byte, signature string, secret string) bool {
	expected := computeHMACSHA256(body, secret)

	// Timing-safe comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// computeHMACSHA256 computes the sha256=<hex> signature value
func computeHMACSHA256(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(h.Sum(nil)))
}
