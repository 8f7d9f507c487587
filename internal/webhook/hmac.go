package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// errVerification is deliberately uninformative.
var errVerification = errors.New("webhook verification failed")

// verifySignature checks an HMAC-SHA256 of body in "sha256=<hex>" or plain
// hex form.
func verifySignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errVerification
	}
	actual, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return errVerification
	}
	if !hmac.Equal(sign(body, secret), actual) {
		return errVerification
	}
	return nil
}

func sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// Signature returns the "sha256=<hex>" header value for body.
func Signature(body []byte, secret string) string {
	return "sha256=" + hex.EncodeToString(sign(body, secret))
}
