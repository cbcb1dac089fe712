package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// DeriveFaceToken returns hex(HMAC-SHA256(secret, reference)). The same
// reference and secret always give the same token.
func DeriveFaceToken(reference string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(reference))
	return hex.EncodeToString(mac.Sum(nil))
}
