// Package sms sends driver notifications.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

// Sender is the notification interface.
type Sender interface {
	Send(ctx context.Context, phone, templateCode string, params map[string]string) error
	SendVerifyCode(ctx context.Context, phone, code string) error
	SendSwapComplete(ctx context.Context, phone, transactionNo, amount string) error
	SendReservationReminder(ctx context.Context, phone, stationName, slotTime string) error
}

// Template keys.
const (
	TemplateVerifyCode          = "verify_code"
	TemplateSwapComplete        = "swap_complete"
	TemplateReservationReminder = "reservation_reminder"
	TemplatePaymentSuccess      = "payment_success"
)

// DefaultTemplates maps template keys to provider template codes.
var DefaultTemplates = map[string]string{
	TemplateVerifyCode:          "SMS_EV_VERIFY",
	TemplateSwapComplete:        "SMS_EV_SWAP_DONE",
	TemplateReservationReminder: "SMS_EV_RESV_REMIND",
	TemplatePaymentSuccess:      "SMS_EV_PAY_OK",
}

// AliyunConfig is the Aliyun SMS configuration.
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	Endpoint        string
}

// AliyunSender sends via the Aliyun SMS API.
type AliyunSender struct {
	client    *dysmsapi.Client
	signName  string
	templates map[string]string
}

// NewAliyunSender creates an Aliyun SMS sender.
func NewAliyunSender(config *AliyunConfig) (*AliyunSender, error) {
	cfg := &openapi.Config{
		AccessKeyId:     tea.String(config.AccessKeyID),
		AccessKeySecret: tea.String(config.AccessKeySecret),
	}
	if config.Endpoint != "" {
		cfg.Endpoint = tea.String(config.Endpoint)
	} else {
		cfg.Endpoint = tea.String("dysmsapi.aliyuncs.com")
	}

	client, err := dysmsapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create sms client: %w", err)
	}

	return &AliyunSender{
		client:    client,
		signName:  config.SignName,
		templates: DefaultTemplates,
	}, nil
}

// SetTemplates overrides template codes.
func (s *AliyunSender) SetTemplates(templates map[string]string) {
	for k, v := range templates {
		s.templates[k] = v
	}
}

// Send sends one message.
func (s *AliyunSender) Send(ctx context.Context, phone, templateCode string, params map[string]string) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	req := &dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(s.signName),
		TemplateCode:  tea.String(templateCode),
		TemplateParam: tea.String(string(paramsJSON)),
	}

	resp, err := s.client.SendSms(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	if resp.Body == nil || resp.Body.Code == nil || *resp.Body.Code != "OK" {
		msg := "unknown error"
		if resp.Body != nil && resp.Body.Message != nil {
			msg = *resp.Body.Message
		}
		return fmt.Errorf("failed to send sms: %s", msg)
	}

	return nil
}

// SendVerifyCode sends a login verification code.
func (s *AliyunSender) SendVerifyCode(ctx context.Context, phone, code string) error {
	return s.Send(ctx, phone, s.templates[TemplateVerifyCode], map[string]string{
		"code": code,
	})
}

// SendSwapComplete notifies the driver that a swap completed.
func (s *AliyunSender) SendSwapComplete(ctx context.Context, phone, transactionNo, amount string) error {
	return s.Send(ctx, phone, s.templates[TemplateSwapComplete], map[string]string{
		"transaction_no": transactionNo,
		"amount":         amount,
	})
}

// SendReservationReminder reminds the driver of an upcoming slot.
func (s *AliyunSender) SendReservationReminder(ctx context.Context, phone, stationName, slotTime string) error {
	return s.Send(ctx, phone, s.templates[TemplateReservationReminder], map[string]string{
		"station": stationName,
		"slot":    slotTime,
	})
}

// MockSender records messages for development and tests.
type MockSender struct {
	SentMessages []MockMessage
}

// MockMessage is one recorded message.
type MockMessage struct {
	Phone        string
	TemplateCode string
	Params       map[string]string
	SentAt       time.Time
}

// NewMockSender creates a mock sender.
func NewMockSender() *MockSender {
	return &MockSender{
		SentMessages: make([]MockMessage, 0),
	}
}

// Send records the message.
func (s *MockSender) Send(ctx context.Context, phone, templateCode string, params map[string]string) error {
	s.SentMessages = append(s.SentMessages, MockMessage{
		Phone:        phone,
		TemplateCode: templateCode,
		Params:       params,
		SentAt:       time.Now(),
	})
	return nil
}

// SendVerifyCode records a verification code message.
func (s *MockSender) SendVerifyCode(ctx context.Context, phone, code string) error {
	return s.Send(ctx, phone, TemplateVerifyCode, map[string]string{"code": code})
}

// SendSwapComplete records a swap completion message.
func (s *MockSender) SendSwapComplete(ctx context.Context, phone, transactionNo, amount string) error {
	return s.Send(ctx, phone, TemplateSwapComplete, map[string]string{
		"transaction_no": transactionNo,
		"amount":         amount,
	})
}

// SendReservationReminder records a reservation reminder.
func (s *MockSender) SendReservationReminder(ctx context.Context, phone, stationName, slotTime string) error {
	return s.Send(ctx, phone, TemplateReservationReminder, map[string]string{
		"station": stationName,
		"slot":    slotTime,
	})
}

// GetLastMessage returns the most recent message.
func (s *MockSender) GetLastMessage() *MockMessage {
	if len(s.SentMessages) == 0 {
		return nil
	}
	return &s.SentMessages[len(s.SentMessages)-1]
}

// Clear drops recorded messages.
func (s *MockSender) Clear() {
	s.SentMessages = make([]MockMessage, 0)
}
