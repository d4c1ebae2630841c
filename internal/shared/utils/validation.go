package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxIDLength      = 128
	MaxMessageLength = 65536
	MinMobileDigits  = 5
	MaxMobileDigits  = 20
)

var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores. Session IDs name
	// profile directories on disk, so nothing path-like gets through.
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// MobilePattern allows an optional leading + followed by digits
	MobilePattern = regexp.MustCompile(`^\+?[0-9]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Null bytes never reach the automation bridge
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateSessionID validates a caller-supplied session name
func ValidateSessionID(sessionID string) error {
	return ValidateID(sessionID, "session_id", true)
}

// ValidateMobile validates a recipient number. A full chat address
// (containing '@') is passed through untouched.
func ValidateMobile(mobile string) error {
	if err := ValidateString(mobile, "mobile", 1, MaxIDLength, true); err != nil {
		return err
	}
	if strings.Contains(mobile, "@") {
		return nil
	}

	if !MobilePattern.MatchString(mobile) {
		return fmt.Errorf("mobile must contain only digits")
	}

	digits := len(strings.TrimPrefix(mobile, "+"))
	if digits < MinMobileDigits || digits > MaxMobileDigits {
		return fmt.Errorf("mobile must have between %d and %d digits", MinMobileDigits, MaxMobileDigits)
	}

	return nil
}

// ValidateMessage validates an outbound message body
func ValidateMessage(message string) error {
	if err := ValidateString(message, "message", 1, MaxMessageLength, true); err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message must not be blank")
	}
	return nil
}
