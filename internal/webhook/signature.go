package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SignatureTolerance is how far a delivery timestamp may drift from the
// receiver's clock before Verify rejects it.
const SignatureTolerance = 5 * time.Minute

// Sign returns the X-Signature header value: "sha256=" followed by the hex
// HMAC-SHA256 of "<unix timestamp>.<body>" under secret. The timestamp is
// sent alongside in X-Timestamp.
func Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify is the receiver side of Sign. Stale or future timestamps fail.
func Verify(secret string, timestamp int64, payload []byte, signature string, now time.Time) bool {
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew > SignatureTolerance || skew < -SignatureTolerance {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(secret, timestamp, payload)))
}
