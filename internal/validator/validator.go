package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field rules that validator/v10 tags can't express cleanly. Each failure is
// a stable snake_case code the frontend maps to its own wording.

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)
	lowercaseRegex = regexp.MustCompile(`[a-z]`)
	uppercaseRegex = regexp.MustCompile(`[A-Z]`)
	numberRegex    = regexp.MustCompile(`\d`)
)

func Email(email string) error {
	const maxLength = 64

	if len(email) > maxLength {
		return fmt.Errorf("long_email")
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("bad_format")
	}

	return nil
}

func Password(password string) error {
	length := len(password)
	if length < 6 {
		return fmt.Errorf("short_password")
	} else if length > 32 {
		return fmt.Errorf("long_password")
	}

	if !lowercaseRegex.MatchString(password) {
		return fmt.Errorf("no_lowercase")
	}
	if !uppercaseRegex.MatchString(password) {
		return fmt.Errorf("no_uppercase")
	}
	if !numberRegex.MatchString(password) {
		return fmt.Errorf("no_number")
	}
	return nil
}

func DisplayName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("empty_name")
	}
	if utf8.RuneCountInString(trimmed) > 32 {
		return fmt.Errorf("long_name")
	}
	return nil
}

func ServerName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("empty_name")
	}
	if utf8.RuneCountInString(trimmed) > 64 {
		return fmt.Errorf("long_name")
	}
	return nil
}

// ChannelName allows lowercase slugs the way chat channels are conventionally
// named. The reserved "general" name is a permissions concern, not a format one.
func ChannelName(name string) error {
	if name == "" {
		return fmt.Errorf("empty_name")
	}
	if len(name) > 32 {
		return fmt.Errorf("long_name")
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return fmt.Errorf("bad_format")
		}
	}
	return nil
}
