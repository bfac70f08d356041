package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Email and phone regex patterns
var (
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	PhoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

var months = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// IsValidMonth reports whether the value names a calendar month,
// case-insensitively.
func IsValidMonth(month string) bool {
	return months[strings.ToLower(strings.TrimSpace(month))]
}

// ValidateEmail checks if email format is valid
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePhone checks if phone is in E.164 format
func ValidatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone is required")
	}
	if !PhoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone format (use E.164 format, e.g., +919876543210)")
	}
	return nil
}
