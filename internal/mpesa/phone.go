package mpesa

import (
	"strings"
)

const (
	DefaultCountryCode = "254"
	subscriberDigits   = 9
)

// NormalizePhoneNumber converts local and international notations to the
// gateway's MSISDN form: "0712345678", "+254712345678" and "254712345678"
// all become "254712345678".
func NormalizePhoneNumber(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	phone := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	phone = strings.TrimPrefix(phone, "+")

	switch {
	case strings.HasPrefix(phone, "0"):
		phone = countryCode + phone[1:]
	case strings.HasPrefix(phone, countryCode):
	case len(phone) == subscriberDigits:
		phone = countryCode + phone
	}

	if len(phone) != len(countryCode)+subscriberDigits || !isDigits(phone) {
		return "", ErrInvalidPhoneNumber
	}
	return phone, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
