package sipua

import (
	"fmt"

	"github.com/jask/phone/internal/phone"
)

const (
	dtmfContentType = "application/dtmf-relay"
	dtmfDurationMS  = 160
)

// dtmfBody is the SIP INFO payload for one key.
func dtmfBody(d phone.Digit) []byte {
	return []byte(fmt.Sprintf("Signal=%s\r\nDuration=%d\r\n", d, dtmfDurationMS))
}

// reasonValue is a Reason header value (RFC 3326) for a hang-up.
func reasonValue(code int, text string) string {
	return fmt.Sprintf("SIP ;cause=%d ;text=%q", code, text)
}
