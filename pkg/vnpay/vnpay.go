// Package vnpay implements the VNPay payment gateway protocol.
//
// The redirect flow: build a signed payment URL, send the driver to VNPay,
// then verify the signed return/IPN query string. All amounts on the wire are
// in minor units, one hundredth of a dong, so values are multiplied by 100
// when building a URL and divided by 100 when parsing a callback.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ResponseCodeSuccess is the vnp_ResponseCode value signalling success.
const ResponseCodeSuccess = "00"

// Config is the VNPay merchant configuration.
type Config struct {
	TmnCode    string `mapstructure:"tmn_code"`
	HashSecret string `mapstructure:"hash_secret"`
	PayURL     string `mapstructure:"pay_url"`
	ReturnURL  string `mapstructure:"return_url"`
	IsSandbox  bool   `mapstructure:"is_sandbox"`
}

// Client builds and verifies VNPay requests.
type Client struct {
	config *Config
	now    func() time.Time
}

// NewClient creates a VNPay client.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		now:    time.Now,
	}
}

// PaymentRequest describes an order to pay.
type PaymentRequest struct {
	TxnRef    string // unique merchant transaction reference
	Amount    int64  // VND
	OrderInfo string
	IPAddress string
	BankCode  string // optional, preselects the bank page
	Locale    string // "vn" or "en", defaults to "vn"
}

// BuildPaymentURL builds the signed redirect URL for a payment.
func (c *Client) BuildPaymentURL(req *PaymentRequest) (string, error) {
	if req.TxnRef == "" {
		return "", fmt.Errorf("txn ref is required")
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}

	now := c.now()
	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", c.config.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.TxnRef)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", locale)
	params.Set("vnp_ReturnUrl", c.config.ReturnURL)
	params.Set("vnp_IpAddr", req.IPAddress)
	params.Set("vnp_CreateDate", now.Format("20060102150405"))
	params.Set("vnp_ExpireDate", now.Add(15*time.Minute).Format("20060102150405"))
	if req.BankCode != "" {
		params.Set("vnp_BankCode", req.BankCode)
	}

	query := encodeSorted(params)
	signature := c.sign(query)

	return c.config.PayURL + "?" + query + "&vnp_SecureHash=" + signature, nil
}

// CallbackResult is the parsed return/IPN payload.
type CallbackResult struct {
	TxnRef        string
	TransactionNo string
	BankCode      string
	ResponseCode  string
	Amount        int64 // VND, already divided by 100
	PayDate       string
	Success       bool
}

// VerifyCallback validates the signature of a return/IPN query string and
// parses it. Returns an error when the signature does not match.
func (c *Client) VerifyCallback(query url.Values) (*CallbackResult, error) {
	receivedHash := query.Get("vnp_SecureHash")
	if receivedHash == "" {
		return nil, fmt.Errorf("missing vnp_SecureHash")
	}

	signable := url.Values{}
	for key, values := range query {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if len(values) > 0 {
			signable.Set(key, values[0])
		}
	}

	expected := c.sign(encodeSorted(signable))
	if !hmac.Equal([]byte(strings.ToLower(receivedHash)), []byte(expected)) {
		return nil, fmt.Errorf("invalid signature")
	}

	result := &CallbackResult{
		TxnRef:        query.Get("vnp_TxnRef"),
		TransactionNo: query.Get("vnp_TransactionNo"),
		BankCode:      query.Get("vnp_BankCode"),
		ResponseCode:  query.Get("vnp_ResponseCode"),
		PayDate:       query.Get("vnp_PayDate"),
	}
	result.Success = result.ResponseCode == ResponseCodeSuccess

	if raw := query.Get("vnp_Amount"); raw != "" {
		minor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vnp_Amount: %w", err)
		}
		result.Amount = minor / 100
	}

	return result, nil
}

// sign computes the lowercase hex HMAC-SHA512 of data.
func (c *Client) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(c.config.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeSorted encodes params sorted by key, the order VNPay signs in.
func encodeSorted(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(url.QueryEscape(key))
		builder.WriteByte('=')
		builder.WriteString(url.QueryEscape(params.Get(key)))
	}
	return builder.String()
}
