package utils

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidMinutes = errors.New("duration must be a positive whole number of minutes")

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)

	// + prefix followed by up to 15 digits
	match, _ := regexp.MatchString(`^\+?[1-9]\d{1,14}$`, cleaned)
	return match
}

// ParseMinutes reads a duration typed into a cell. Empty, zero, negative and
// non-numeric input is rejected.
func ParseMinutes(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidMinutes
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, ErrInvalidMinutes
	}
	return n, nil
}

// ParseClock reads an HH:MM time of day.
func ParseClock(value string) (time.Time, error) {
	return time.Parse("15:04", strings.TrimSpace(value))
}
