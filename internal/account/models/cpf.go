package models

import (
	"errors"
	"strings"

	dErrors "krtbank/pkg/domain-errors"
)

const cpfLength = 11

var (
	ErrCpfRequired        = errors.New("cpf is required")
	ErrCpfInvalidFormat   = errors.New("cpf must have 11 digits and not be a repeated sequence")
	ErrCpfInvalidChecksum = errors.New("cpf check digits do not match")
)

// Cpf is a validated Brazilian taxpayer identifier. It holds only the
// normalized digits, so == and map keys compare by normalized value.
type Cpf struct {
	normalized string
}

// ParseCpf strips separators from raw and validates both check digits.
func ParseCpf(raw string) (Cpf, error) {
	if strings.TrimSpace(raw) == "" {
		return Cpf{}, dErrors.Wrap(ErrCpfRequired, dErrors.CodeValidation, "invalid cpf")
	}
	digits := normalizeCpf(raw)
	if err := validateCpf(digits); err != nil {
		return Cpf{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid cpf")
	}
	return Cpf{normalized: digits}, nil
}

// Normalized returns the 11 digits without separators.
func (c Cpf) Normalized() string {
	return c.normalized
}

// Formatted returns the ddd.ddd.ddd-dd display form.
func (c Cpf) Formatted() string {
	return FormatCpf(c.normalized)
}

func (c Cpf) Equal(other Cpf) bool {
	return c.normalized == other.normalized
}

// String returns the normalized value.
func (c Cpf) String() string {
	return c.normalized
}

// FormatCpf groups an already normalized value as 3-3-3-2. It does not
// validate; callers pass the output of Normalized.
func FormatCpf(normalized string) string {
	if len(normalized) != cpfLength {
		return normalized
	}
	var b strings.Builder
	b.Grow(cpfLength + 3)
	b.WriteString(normalized[0:3])
	b.WriteByte('.')
	b.WriteString(normalized[3:6])
	b.WriteByte('.')
	b.WriteString(normalized[6:9])
	b.WriteByte('-')
	b.WriteString(normalized[9:11])
	return b.String()
}

func normalizeCpf(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validateCpf(digits string) error {
	if len(digits) != cpfLength {
		return ErrCpfInvalidFormat
	}
	if strings.Count(digits, digits[:1]) == cpfLength {
		return ErrCpfInvalidFormat
	}

	var d [cpfLength]int
	for i := range digits {
		d[i] = int(digits[i] - '0')
	}
	if cpfCheckDigit(d[:9]) != d[9] {
		return ErrCpfInvalidChecksum
	}
	if cpfCheckDigit(d[:10]) != d[10] {
		return ErrCpfInvalidChecksum
	}
	return nil
}

// cpfCheckDigit weights the digits from len+1 down to 2.
func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, v := range digits {
		sum += v * weight
		weight--
	}
	remainder := (sum * 10) % 11
	if remainder == 10 {
		return 0
	}
	return remainder
}
