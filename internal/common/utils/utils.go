// Package utils provides common helper functions.
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GenerateOrderNo generates an order number.
// Format: prefix + yyyyMMddHHmmss + 6 random digits.
func GenerateOrderNo(prefix string) string {
	now := time.Now()
	timestamp := now.Format("20060102150405")
	random := GenerateRandomNumber(6)
	return fmt.Sprintf("%s%s%s", prefix, timestamp, random)
}

// GenerateRandomNumber generates a random numeric string of the given length.
func GenerateRandomNumber(length int) string {
	var result strings.Builder
	for i := 0; i < length; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		result.WriteString(strconv.Itoa(int(n.Int64())))
	}
	return result.String()
}

// GenerateCheckInCode generates a short reservation check-in code.
// Ambiguous characters 0, O, I and 1 are excluded.
func GenerateCheckInCode(length int) string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var result strings.Builder
	for i := 0; i < length; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result.WriteByte(charset[n.Int64()])
	}
	return result.String()
}

var (
	vinPattern   = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	platePattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{1,2}[0-9]?-?[0-9]{4,5}$`)
	phonePattern = regexp.MustCompile(`^(0|\+84)[3-9]\d{8}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ValidateVIN validates a 17 character vehicle identification number.
// Letters I, O and Q are not valid VIN characters.
func ValidateVIN(vin string) bool {
	return vinPattern.MatchString(strings.ToUpper(vin))
}

// ValidatePlate validates a Vietnamese license plate such as 51F-123.45 after
// stripping dots.
func ValidatePlate(plate string) bool {
	normalized := strings.ToUpper(strings.ReplaceAll(plate, ".", ""))
	return platePattern.MatchString(normalized)
}

// ValidatePhone validates a Vietnamese mobile number.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// FormatVND formats an amount in Vietnamese dong with thousand separators.
func FormatVND(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	result := strings.Join(parts, ",")
	if negative {
		result = "-" + result
	}
	return result + " ₫"
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to i.
func Int64Ptr(i int64) *int64 {
	return &i
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// SafeString dereferences s, returning "" for nil.
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SafeInt64 dereferences i, returning 0 for nil.
func SafeInt64(i *int64) int64 {
	if i == nil {
		return 0
	}
	return *i
}

// SafeFloat64 dereferences f, returning 0 for nil.
func SafeFloat64(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Contains reports whether slice contains item.
func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// TruncateString truncates s to at most max runes.
func TruncateString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
