package mpesa

import (
	"errors"
	"testing"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"0110 123 456", "254110123456"},
		{"712345678", "254712345678"},
		{" +254-712-345-678 ", "254712345678"},
	}
	for _, tc := range cases {
		got, err := NormalizePhoneNumber(tc.in, "")
		if err != nil {
			t.Fatalf("normalize %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("normalize %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestNormalizePhoneNumberRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "12345", "07123456789", "2547123abc78", "+1 555 0100"} {
		if _, err := NormalizePhoneNumber(in, DefaultCountryCode); !errors.Is(err, ErrInvalidPhoneNumber) {
			t.Fatalf("expected invalid phone for %q, got %v", in, err)
		}
	}
}
