// Package acctnum generates and validates bank account numbers.
// A number is a 4-digit branch code, random digits and a Luhn check digit.
package acctnum

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// Length is the total number of digits of an account number.
	Length        = 12
	BranchLen     = 4
	DefaultBranch = "0001"
)

// Generate returns a random Luhn-valid account number for branch.
func Generate(branch string) (string, error) {
	if err := ValidateBranch(branch); err != nil {
		return "", err
	}

	fill := Length - 1 - len(branch)
	digits, err := randomDigits(fill)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}

	body := branch + digits
	return body + luhnCheckDigit(body), nil
}

// GenerateUnique retries Generate until exists reports an unused number.
func GenerateUnique(branch string, maxRetries int, exists func(string) (bool, error)) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	for i := 0; i <= maxRetries; i++ {
		number, err := Generate(branch)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return number, nil
		}
		used, err := exists(number)
		if err != nil {
			return "", fmt.Errorf("exists callback: %w", err)
		}
		if !used {
			return number, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique account number after %d retries", maxRetries)
}

// randomDigits uses rejection sampling so every digit is equally likely:
// only bytes below 250 are kept before taking them modulo 10.
func randomDigits(count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 32)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if buf[i] < threshold {
				sb.WriteByte('0' + buf[i]%10)
			}
		}
	}
	return sb.String(), nil
}

func luhnCheckDigit(body string) string {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	cd := (10 - (sum % 10)) % 10
	return string('0' + byte(cd))
}

// Validate checks length, digits and the Luhn check digit.
func Validate(number string) error {
	if number == "" {
		return fmt.Errorf("account number is required")
	}
	if !IsDigits(number) {
		return fmt.Errorf("account number must contain digits only")
	}
	if len(number) != Length {
		return fmt.Errorf("account number must be %d digits (got %d)", Length, len(number))
	}
	body := number[:len(number)-1]
	if number[len(number)-1] != luhnCheckDigit(body)[0] {
		return fmt.Errorf("invalid account number check digit")
	}
	return nil
}

func ValidateBranch(branch string) error {
	if len(branch) != BranchLen || !IsDigits(branch) {
		return fmt.Errorf("branch code must be %d digits", BranchLen)
	}
	return nil
}

func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Mask keeps the last four digits visible.
func Mask(number string) string {
	cleaned := Normalize(number)
	n := len(cleaned)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	return strings.Repeat("*", n-4) + cleaned[n-4:]
}

// Normalize strips spaces, tabs and dashes.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}
