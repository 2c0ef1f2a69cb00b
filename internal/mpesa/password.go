package mpesa

import (
	"encoding/base64"
	"time"
)

const (
	timestampLayout = "20060102150405"

	MaxAccountReferenceLength = 12
	MaxTransactionDescLength  = 13
)

// Timestamp formats t the way the gateway expects (YYYYMMDDhhmmss).
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
