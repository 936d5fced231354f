package validation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCPFValidateAcceptsKnownGoodNumbers(t *testing.T) {
	valid := []string{
		"529.982.247-25",
		"52998224725",
		"111.444.777-35",
		"123.456.789-09",
	}

	for _, cpf := range valid {
		require.NoError(t, CPF{}.Validate(cpf), "expected %q to be valid", cpf)
	}
}

func TestCPFValidateRejectsSingleDigitMutations(t *testing.T) {
	const base = "52998224725"

	for pos := 0; pos < len(base); pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if base[pos] == d {
				continue
			}
			mutated := base[:pos] + string(d) + base[pos+1:]
			require.Error(t, CPF{}.Validate(mutated), "mutation at %d to %c should fail", pos, d)
		}
	}
}

func TestCPFValidateRejectsRepeatedDigits(t *testing.T) {
	for d := '0'; d <= '9'; d++ {
		repeated := strings.Repeat(string(d), 11)
		require.Error(t, CPF{}.Validate(repeated), "expected %q to be rejected", repeated)
	}
}

func TestCPFValidateRejectsWrongLengths(t *testing.T) {
	for _, cpf := range []string{"", "1234567890", "123456789012", "abc"} {
		require.Error(t, CPF{}.Validate(cpf))
	}
}

func TestCPFNormalizeStripsFormatting(t *testing.T) {
	require.Equal(t, "52998224725", CPF{}.Normalize("529.982.247-25"))
	require.Equal(t, "52998224725", CPF{}.Normalize(" 529 982 247 25 "))
}

func TestRegistryResolvesByLocale(t *testing.T) {
	registry := DefaultRegistry()

	v, err := registry.ForLocale("br")
	require.NoError(t, err)
	require.Equal(t, "BR", v.Locale())

	_, err = registry.ForLocale("US")
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprintf("%q", "US"))
}
