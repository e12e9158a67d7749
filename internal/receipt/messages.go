package receipt

import (
	"errors"

	"github.com/zombor/receipt-bot/internal/extraction"
	"github.com/zombor/receipt-bot/internal/scanning"
	"github.com/zombor/receipt-bot/internal/session"
)

// User-facing messages for failed scans
const (
	MsgUnreadable = "Unable to read the text clearly from the image. Please send a properly captured, clear image of the receipt."
	MsgBlurry     = "The image seems blurry or unclear. Please upload a clear, readable image of the receipt."
	MsgNoPending  = "No image found. Please send the receipt image again."
	MsgUpstream   = "The text recognition service is unavailable. Please try again later."
	MsgBadFormat  = "That file is not an image I can read. Please send a JPEG, PNG, HEIC or PDF."
	MsgEmpty      = "The uploaded file is empty. Please send the receipt image again."
)

// UserMessage returns the message to show a user for a failed scan, or "" when
// err is not a known scan failure
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnreadableImage):
		return MsgUnreadable
	case errors.Is(err, extraction.ErrPoorImageQuality):
		return MsgBlurry
	case errors.Is(err, session.ErrNoPendingImage):
		return MsgNoPending
	case errors.Is(err, scanning.ErrUpstreamUnavailable):
		return MsgUpstream
	case errors.Is(err, scanning.ErrUnsupportedImage):
		return MsgBadFormat
	case errors.Is(err, ErrEmptyImage):
		return MsgEmpty
	default:
		return ""
	}
}
