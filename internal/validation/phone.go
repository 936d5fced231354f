package validation

import (
	"strings"

	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

const brazilCountryCode = "55"

// NormalizePhone canonicalises a Brazilian phone number to +55 followed by the
// national number. Accepted inputs after stripping formatting:
//
//	11 digits, third digit 9:     mobile (DDD + 9XXXXXXXX)
//	10 digits, third digit not 9: landline (DDD + XXXXXXXX)
//	13 digits starting with 55:   already country-prefixed
func NormalizePhone(raw string) (string, error) {
	digits := digitsOnly(raw)

	switch len(digits) {
	case 11:
		if digits[2] != '9' {
			return "", apperrors.NewValidation("phone", "mobile numbers must start with 9 after the area code")
		}
		return "+" + brazilCountryCode + digits, nil
	case 10:
		if digits[2] == '9' {
			return "", apperrors.NewValidation("phone", "landline numbers cannot start with 9 after the area code")
		}
		return "+" + brazilCountryCode + digits, nil
	case 13:
		if !strings.HasPrefix(digits, brazilCountryCode) {
			return "", apperrors.NewValidation("phone", "unsupported country code")
		}
		return "+" + digits, nil
	default:
		return "", apperrors.NewValidation("phone", "phone number has an invalid length")
	}
}
