package hubspot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

// Headers carrying the v3 request signature.
const (
	SignatureHeader = "X-HubSpot-Signature-v3"
	TimestampHeader = "X-HubSpot-Request-Timestamp"
)

// MaxSignatureAge bounds how old a signed request may be.
const MaxSignatureAge = 5 * time.Minute

var (
	ErrSignatureMissing = errors.New("hubspot: signature missing")
	ErrSignatureExpired = errors.New("hubspot: signature timestamp outside window")
	ErrSignatureInvalid = errors.New("hubspot: signature mismatch")
)

// Sign computes the v3 signature of method+uri+body+timestamp.
func Sign(secret, method, uri string, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(method))
	_, _ = mac.Write([]byte(uri))
	_, _ = mac.Write(body)
	_, _ = mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a v3 signature. timestamp is in epoch milliseconds.
func VerifySignature(secret, method, uri string, body []byte, timestamp, signature string, now time.Time) error {
	if signature == "" || timestamp == "" {
		return ErrSignatureMissing
	}
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrSignatureMissing
	}
	age := now.Sub(time.UnixMilli(ms))
	if age > MaxSignatureAge || age < -MaxSignatureAge {
		return ErrSignatureExpired
	}
	expected := Sign(secret, method, uri, body, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}
