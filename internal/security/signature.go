package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the payment provider's signature.
const SignatureHeader = "Payment-Signature"

// ErrInvalidSignature is returned when a payload signature is missing, malformed, stale or wrong.
var ErrInvalidSignature = errors.New("invalid signature")

// SignPayload builds a signature header value for payload at timestamp.
func SignPayload(secret string, timestamp time.Time, payload []byte) string {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(secret, ts, payload)
}

// VerifySignature checks header against payload.
// The header has the form "t=<unix>,v1=<hex>[,v1=<hex>...]"; any matching v1 passes.
// A zero tolerance disables the timestamp age check.
func VerifySignature(secret string, header string, payload []byte, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}
	timestamp, signatures, errParse := parseSignatureHeader(header)
	if errParse != nil {
		return errParse
	}
	if tolerance > 0 {
		unix, errInt := strconv.ParseInt(timestamp, 10, 64)
		if errInt != nil {
			return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
		}
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	expected, _ := hex.DecodeString(computeSignature(secret, timestamp, payload))
	for _, candidate := range signatures {
		decoded, errDecode := hex.DecodeString(candidate)
		if errDecode != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (string, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil, fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	return timestamp, signatures, nil
}

func computeSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
