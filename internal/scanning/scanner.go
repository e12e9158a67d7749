package scanning

import (
	"context"
	"errors"
)

var (
	// ErrNoText is returned when the provider finished but recognized nothing
	ErrNoText = errors.New("no text recognized")
	// ErrUpstreamUnavailable is returned when the provider failed or timed out
	ErrUpstreamUnavailable = errors.New("ocr provider unavailable")
)

// Scanner defines the interface for optical character recognition
type Scanner interface {
	// ReadLines recognizes the text of a receipt image/PDF and returns its
	// lines in reading order
	ReadLines(ctx context.Context, imageData []byte, contentType string) ([]string, error)
	// Close closes the scanner and releases resources
	Close() error
}
