package rail

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds the age of a timestamped signature.
const DefaultSignatureTolerance = 5 * time.Minute

// ValidateTimestampedSignature checks a "t=<unix>,v1=<hex>" header where each
// v1 is hex(HMAC-SHA256(secret, "<t>.<rawBody>")). Any matching v1 is accepted
// as long as t is within tolerance of now. An empty secret never validates.
func ValidateTimestampedSignature(rawBody []byte, header, secret string, now time.Time, tolerance time.Duration) bool {
	if secret == "" || header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return false
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			valid = true
		}
	}
	return valid
}

// SignTimestamped produces a header accepted by ValidateTimestampedSignature.
func SignTimestamped(rawBody []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// ValidateHMACSHA512 checks header == hex(HMAC-SHA512(secret, rawBody)).
// An empty secret never validates.
func ValidateHMACSHA512(rawBody []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// SignHMACSHA512 produces a header accepted by ValidateHMACSHA512.
func SignHMACSHA512(rawBody []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
