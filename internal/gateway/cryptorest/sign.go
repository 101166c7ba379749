package cryptorest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
)

// prehashSign is the BITGET/OKX scheme:
// base64(HMAC-SHA256(timestamp + METHOD + requestPath[?query] + body)).
func prehashSign(secret, ts, method, path string, query url.Values, body string) string {
	requestPath := path
	if q := query.Encode(); q != "" {
		requestPath += "?" + q
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
