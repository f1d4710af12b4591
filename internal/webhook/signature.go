package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"net/http"
	"strings"
)

// Signature headers sent by Meta on webhook event notifications.
const (
	// HeaderSignature is the legacy header: "sha1=<hex HMAC-SHA1>".
	HeaderSignature = "X-Hub-Signature"
	// HeaderSignature256 is the stronger header: "sha256=<hex HMAC-SHA256>".
	HeaderSignature256 = "X-Hub-Signature-256"
)

// Algorithm identifies which signature header authenticated a notification.
type Algorithm string

const (
	AlgorithmNone   Algorithm = ""
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
)

// Verify checks a legacy X-Hub-Signature header value ("sha1=<hex>") against
// the HMAC-SHA1 of payload keyed with secret.
//
// payload must be the exact bytes received on the wire. Any malformed input
// (empty header, no "=", algorithm other than sha1, empty secret) yields false.
// The digest comparison is constant-time.
func Verify(secret, payload []byte, header string) bool {
	return verifyWith(secret, payload, header, AlgorithmSHA1, sha1.New)
}

// VerifySHA256 is Verify for the X-Hub-Signature-256 header ("sha256=<hex>").
func VerifySHA256(secret, payload []byte, header string) bool {
	return verifyWith(secret, payload, header, AlgorithmSHA256, sha256.New)
}

// VerifyRequest authenticates payload using the signature headers of a request.
//
// X-Hub-Signature-256 is preferred when present. If it is present but does not
// match, the request is rejected without falling back to the sha1 header, so a
// forged sha256 value cannot be downgraded. Without it, the legacy sha1 header
// is required; an absent header is checked as the empty string and fails.
func VerifyRequest(secret, payload []byte, h http.Header) (Algorithm, bool) {
	if sig := h.Get(HeaderSignature256); sig != "" {
		if VerifySHA256(secret, payload, sig) {
			return AlgorithmSHA256, true
		}
		return AlgorithmSHA256, false
	}
	if Verify(secret, payload, h.Get(HeaderSignature)) {
		return AlgorithmSHA1, true
	}
	return AlgorithmSHA1, false
}

func verifyWith(secret, payload []byte, header string, want Algorithm, newHash func() hash.Hash) bool {
	if len(secret) == 0 {
		return false
	}

	algo, digest, ok := strings.Cut(header, "=")
	if !ok || Algorithm(algo) != want {
		return false
	}

	mac := hmac.New(newHash, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(digest))
}

// Sign returns the header value Meta would send for payload under algo.
// Only sha1 and sha256 are supported; any other value returns "".
func Sign(secret, payload []byte, algo Algorithm) string {
	var newHash func() hash.Hash
	switch algo {
	case AlgorithmSHA1:
		newHash = sha1.New
	case AlgorithmSHA256:
		newHash = sha256.New
	default:
		return ""
	}
	mac := hmac.New(newHash, secret)
	mac.Write(payload)
	return string(algo) + "=" + hex.EncodeToString(mac.Sum(nil))
}
