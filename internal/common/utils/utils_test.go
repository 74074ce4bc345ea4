package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateVIN(t *testing.T) {
	assert.True(t, ValidateVIN("1HGBH41JXMN109186"))
	assert.True(t, ValidateVIN("1hgbh41jxmn109186"), "lowercase input is accepted")

	assert.False(t, ValidateVIN("1HGBH41JXMN10918"))   // 16 chars
	assert.False(t, ValidateVIN("1HGBH41JXMN1091867")) // 18 chars
	assert.False(t, ValidateVIN("IHGBH41JXMN109186"))  // I is not a VIN character
	assert.False(t, ValidateVIN("OHGBH41JXMN109186"))  // neither is O
	assert.False(t, ValidateVIN("QHGBH41JXMN109186"))  // nor Q
	assert.False(t, ValidateVIN(""))
}

func TestValidatePlate(t *testing.T) {
	assert.True(t, ValidatePlate("51F-12345"))
	assert.True(t, ValidatePlate("51F-123.45"), "dots are stripped")
	assert.True(t, ValidatePlate("29AB12345"))
	assert.True(t, ValidatePlate("30E1-2345"))

	assert.False(t, ValidatePlate("5F-12345"))
	assert.False(t, ValidatePlate("51F-123"))
	assert.False(t, ValidatePlate(""))
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("0912345678"))
	assert.True(t, ValidatePhone("+84912345678"))

	assert.False(t, ValidatePhone("091234567"))   // too short
	assert.False(t, ValidatePhone("09123456789")) // too long
	assert.False(t, ValidatePhone("0112345678"))  // 01x is retired
	assert.False(t, ValidatePhone("84912345678")) // missing + prefix
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "0 ₫", FormatVND(0))
	assert.Equal(t, "500 ₫", FormatVND(500))
	assert.Equal(t, "45,000 ₫", FormatVND(45000))
	assert.Equal(t, "1,200,000 ₫", FormatVND(1200000))
	assert.Equal(t, "-45,000 ₫", FormatVND(-45000))
}

func TestGenerateOrderNo(t *testing.T) {
	orderNo := GenerateOrderNo("EV")
	assert.True(t, strings.HasPrefix(orderNo, "EV"))
	assert.Len(t, orderNo, 2+14+6)

	assert.NotEqual(t, orderNo, GenerateOrderNo("EV"))
}

func TestGenerateCheckInCode(t *testing.T) {
	code := GenerateCheckInCode(6)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.NotContains(t, "0OI1", string(r), "ambiguous characters are excluded")
	}
}

func TestSafeHelpers(t *testing.T) {
	assert.Equal(t, "", SafeString(nil))
	assert.Equal(t, "x", SafeString(StringPtr("x")))
	assert.Equal(t, int64(0), SafeInt64(nil))
	assert.Equal(t, int64(7), SafeInt64(Int64Ptr(7)))
	assert.Equal(t, float64(0), SafeFloat64(nil))
	assert.Equal(t, 1.5, SafeFloat64(Float64Ptr(1.5)))

	now := time.Now()
	assert.Equal(t, now, *TimePtr(now))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.True(t, Contains([]int{1, 2, 3}, 2))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 5))
	assert.Equal(t, "ab", TruncateString("abcde", 2))
	assert.Equal(t, "xin", TruncateString("xin chào", 3), "truncation counts runes")
}
