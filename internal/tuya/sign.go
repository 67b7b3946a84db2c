package tuya

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Tuya's cloud signature scheme: every request carries an HMAC-SHA256
// over client id, token (empty for token requests), millisecond
// timestamp, nonce, and a canonical string of the request itself.
// The digest is hex-encoded and upper-cased.

// stringToSign builds the canonical request string:
//
//	METHOD \n sha256(body) \n headers \n path?query
//
// No signature headers are used, so the headers slot is empty.
func stringToSign(method, path, query string, body []byte) string {
	sum := sha256.Sum256(body)

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	b.WriteByte('\n')
	b.WriteByte('\n')
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// sign computes the request signature. token is empty when acquiring
// or refreshing a token.
func sign(clientID, secret, token, t, nonce, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(clientID))
	mac.Write([]byte(token))
	mac.Write([]byte(t))
	mac.Write([]byte(nonce))
	mac.Write([]byte(canonical))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
