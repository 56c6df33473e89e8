package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Presigner mints and verifies HMAC-signed retrieval URLs. The signature
// covers the object key and the expiry instant, so a URL grants access
// to exactly one object for a bounded time.
type Presigner struct {
	secret  []byte
	baseURL string
}

// NewPresigner builds a presigner rooted at the public base URL.
func NewPresigner(secret, baseURL string) *Presigner {
	return &Presigner{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

// SignedURL returns a retrieval URL valid for ttl.
func (p *Presigner) SignedURL(key string, ttl time.Duration) string {
	expires := time.Now().Add(ttl).Unix()
	sig := p.signature(key, expires)
	return fmt.Sprintf("%s/files/%s?expires=%d&signature=%s",
		p.baseURL, url.PathEscape(key), expires, sig)
}

// Verify checks the signature and expiry for a download request.
func (p *Presigner) Verify(key, expiresParam, signature string) error {
	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		return errors.New("malformed expiry")
	}
	if time.Now().Unix() > expires {
		return errors.New("url expired")
	}
	expected := p.signature(key, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("signature mismatch")
	}
	return nil
}

func (p *Presigner) signature(key string, expires int64) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%s|%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
