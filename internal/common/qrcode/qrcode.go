// Package qrcode renders QR code images.
package qrcode

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// RecoveryLevel is the error correction level.
type RecoveryLevel int

const (
	// Low is 7% error correction.
	Low RecoveryLevel = iota
	// Medium is 15% error correction.
	Medium
	// High is 25% error correction.
	High
	// Highest is 30% error correction.
	Highest
)

// Generator renders QR codes.
type Generator struct {
	size          int // pixels
	recoveryLevel RecoveryLevel
}

// Option configures a Generator.
type Option func(*Generator)

// WithSize sets the image size in pixels.
func WithSize(size int) Option {
	return func(g *Generator) {
		g.size = size
	}
}

// WithRecoveryLevel sets the error correction level.
func WithRecoveryLevel(level RecoveryLevel) Option {
	return func(g *Generator) {
		g.recoveryLevel = level
	}
}

// NewGenerator creates a QR code generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		size:          256,
		recoveryLevel: Medium,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) toQRCodeLevel() qrcode.RecoveryLevel {
	switch g.recoveryLevel {
	case Low:
		return qrcode.Low
	case Medium:
		return qrcode.Medium
	case High:
		return qrcode.High
	case Highest:
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// GeneratePNG renders content as a PNG image.
func (g *Generator) GeneratePNG(content string) ([]byte, error) {
	data, err := qrcode.Encode(content, g.toQRCodeLevel(), g.size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qrcode: %w", err)
	}
	return data, nil
}

// GenerateBase64 renders content as a base64 data URI suitable for <img src>.
func (g *Generator) GenerateBase64(content string) (string, error) {
	data, err := g.GeneratePNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
