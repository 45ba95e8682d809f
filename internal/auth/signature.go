package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// Request signing headers.
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

// DefaultMaxSkew is the accepted distance between the request timestamp and now.
const DefaultMaxSkew = 5 * time.Minute

const signatureVersion = "v0"

var (
	// ErrMalformedRequest is returned when signing headers are missing or unparsable.
	ErrMalformedRequest = fmt.Errorf("%w: malformed signed request", domain.ErrUnauthorized)
	// ErrStaleRequest is returned when the timestamp is outside the accepted window.
	ErrStaleRequest = fmt.Errorf("%w: stale request timestamp", domain.ErrUnauthorized)
	// ErrSignatureMismatch is returned when the signature does not match the body.
	ErrSignatureMismatch = fmt.Errorf("%w: signature mismatch", domain.ErrUnauthorized)
)

// SignatureVerifier authenticates inbound webhook requests signed with
// HMAC-SHA256 over "v0:{timestamp}:{body}".
type SignatureVerifier struct {
	maxSkew time.Duration
	now     func() time.Time
}

// NewSignatureVerifier creates a verifier. A non-positive maxSkew means DefaultMaxSkew.
func NewSignatureVerifier(maxSkew time.Duration) *SignatureVerifier {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	return &SignatureVerifier{maxSkew: maxSkew, now: time.Now}
}

// Verify checks the signing headers against rawBody. Staleness is checked
// before the MAC is computed. The returned error wraps domain.ErrUnauthorized.
func (v *SignatureVerifier) Verify(h http.Header, rawBody []byte, secret string) error {
	tsRaw := strings.TrimSpace(h.Get(HeaderTimestamp))
	sig := strings.TrimSpace(h.Get(HeaderSignature))
	if tsRaw == "" || sig == "" {
		return ErrMalformedRequest
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return ErrMalformedRequest
	}

	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return ErrStaleRequest
	}

	if !strings.HasPrefix(sig, signatureVersion+"=") {
		return ErrMalformedRequest
	}
	got, err := hex.DecodeString(strings.TrimPrefix(sig, signatureVersion+"="))
	if err != nil {
		return ErrMalformedRequest
	}

	if !hmac.Equal(got, mac(secret, tsRaw, rawBody)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign computes the signature header value for body sent at ts.
func Sign(secret string, ts time.Time, body []byte) string {
	return signatureVersion + "=" + hex.EncodeToString(mac(secret, strconv.FormatInt(ts.Unix(), 10), body))
}

// SignRequest sets both signing headers on h.
func SignRequest(h http.Header, secret string, ts time.Time, body []byte) {
	h.Set(HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	h.Set(HeaderSignature, Sign(secret, ts, body))
}

func mac(secret, ts string, body []byte) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(signatureVersion + ":" + ts + ":"))
	m.Write(body)
	return m.Sum(nil)
}
