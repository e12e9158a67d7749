// Package session keeps the short-lived per-user state of a receipt
// conversation: the image waiting for a category and the current stage.
package session

import (
	"errors"
	"time"
)

// ErrNoPendingImage is returned when a user has no image waiting
var ErrNoPendingImage = errors.New("no pending image")

// Stage is where a user is in the receipt flow
type Stage string

const (
	StageIdle             Stage = "idle"
	StageAwaitingCategory Stage = "awaiting_category"
)

// PendingImage is an uploaded image waiting for its category
type PendingImage struct {
	Data        []byte    `json:"data"`
	ContentType string    `json:"content_type"`
	Filename    string    `json:"filename"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Store defines the interface for session state
type Store interface {
	// PutImage stores img for userID, replacing any image already pending
	PutImage(userID string, img PendingImage) error

	// TakeImage returns and removes the pending image in one step
	TakeImage(userID string) (*PendingImage, error)

	// Stage returns the user's stage, StageIdle when unknown
	Stage(userID string) (Stage, error)

	// SetStage records the user's stage
	SetStage(userID string, stage Stage) error
}
