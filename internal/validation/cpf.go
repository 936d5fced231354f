package validation

import (
	apperrors "github.com/gfranca/barberhub/pkg/errors"
)

const cpfLength = 11

// CPF validates Brazilian Cadastro de Pessoas Físicas numbers using the two
// official verification digits.
type CPF struct{}

// Locale implements Document.
func (CPF) Locale() string { return "BR" }

// Normalize strips punctuation, keeping only the digits.
func (CPF) Normalize(raw string) string {
	return digitsOnly(raw)
}

// Validate checks length, the repeated-digit blacklist, and both check digits.
func (c CPF) Validate(raw string) error {
	digits := c.Normalize(raw)

	if len(digits) != cpfLength {
		return apperrors.NewValidation("cpf", "CPF must contain 11 digits")
	}

	if allSameDigit(digits) {
		// Sequences like 000.000.000-00 satisfy the checksum but are not
		// assignable CPFs.
		return apperrors.NewValidation("cpf", "CPF is invalid")
	}

	if checkDigit(digits, 9) != int(digits[9]-'0') {
		return apperrors.NewValidation("cpf", "CPF is invalid")
	}
	if checkDigit(digits, 10) != int(digits[10]-'0') {
		return apperrors.NewValidation("cpf", "CPF is invalid")
	}

	return nil
}

// checkDigit computes the verification digit over the first n digits with
// weights n+1..2; results of 10 and 11 clamp to 0.
func checkDigit(digits string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(digits[i]-'0') * (n + 1 - i)
	}

	digit := 11 - sum%11
	if digit >= 10 {
		return 0
	}
	return digit
}

func allSameDigit(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
