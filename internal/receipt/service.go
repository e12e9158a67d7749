package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-bot/internal/extraction"
	"github.com/zombor/receipt-bot/internal/scanning"
	"github.com/zombor/receipt-bot/internal/session"
)

// ErrUnreadableImage is returned when OCR found no text in the image
var ErrUnreadableImage = errors.New("unable to read text from the image")

// ErrEmptyImage is returned when an upload carries no bytes
var ErrEmptyImage = errors.New("image is empty")

// DefaultPendingTTL is how long an uploaded image waits for its category
const DefaultPendingTTL = 30 * time.Minute

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	sessions    session.Store
	extractor   *extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
	pendingTTL  time.Duration
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, sessions session.Store, extractor *extraction.Extractor) *Service {
	return NewServiceWithDeps(db, scanner, storage, sessions, extractor, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, sessions session.Store, extractor *extraction.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		sessions:    sessions,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
		pendingTTL:  DefaultPendingTTL,
	}
}

// SetPendingTTL changes how long uploaded images wait for a category.
// Zero disables expiry.
func (s *Service) SetPendingTTL(ttl time.Duration) {
	s.pendingTTL = ttl
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_ ")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}

	return base + ext
}

// SubmitImage stores an uploaded image until the user picks a category
func (s *Service) SubmitImage(userID, filename string, data []byte, contentType string) error {
	if len(data) == 0 {
		return ErrEmptyImage
	}
	img := session.PendingImage{
		Data:        data,
		ContentType: contentType,
		Filename:    filename,
		ReceivedAt:  s.timeSource.Now(),
	}
	if err := s.sessions.PutImage(userID, img); err != nil {
		return fmt.Errorf("storing pending image: %w", err)
	}
	if err := s.sessions.SetStage(userID, session.StageAwaitingCategory); err != nil {
		return fmt.Errorf("setting stage: %w", err)
	}
	return nil
}

// Stage returns where the user is in the receipt flow
func (s *Service) Stage(userID string) (session.Stage, error) {
	return s.sessions.Stage(userID)
}

// ClassifyPending consumes the user's pending image and processes it as category
func (s *Service) ClassifyPending(ctx context.Context, userID string, category extraction.Category) (*Scan, error) {
	img, err := s.sessions.TakeImage(userID)
	if err != nil {
		return nil, fmt.Errorf("taking pending image: %w", err)
	}
	if err := s.sessions.SetStage(userID, session.StageIdle); err != nil {
		slog.Warn("Failed to reset stage", "user", userID, "error", err)
	}

	if s.pendingTTL > 0 && s.timeSource.Now().Sub(img.ReceivedAt) > s.pendingTTL {
		slog.Info("Discarding expired pending image", "user", userID, "received_at", img.ReceivedAt)
		return nil, fmt.Errorf("pending image expired: %w", session.ErrNoPendingImage)
	}

	return s.ProcessReceipt(ctx, userID, img.Filename, img.Data, img.ContentType, category)
}

// ProcessReceipt runs OCR on an image, extracts its fields and saves the scan
func (s *Service) ProcessReceipt(ctx context.Context, userID, filename string, data []byte, contentType string, category extraction.Category) (*Scan, error) {
	lines, err := s.scanner.ReadLines(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to read receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		if errors.Is(err, scanning.ErrNoText) {
			return nil, ErrUnreadableImage
		}
		return nil, fmt.Errorf("reading receipt: %w", err)
	}

	result, err := s.extractor.Extract(lines, category)
	if err != nil {
		return nil, fmt.Errorf("extracting fields: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	scan := &Scan{
		ID:          id,
		UserID:      userID,
		Category:    result.Category,
		Title:       result.Title,
		Targeted:    result.Targeted,
		Fields:      result.Fields,
		Residuals:   result.Residuals,
		Lines:       lines,
		Report:      extraction.Render(result),
		Filename:    savedPath,
		ContentType: contentType,
		CreatedAt:   now,
	}

	if err := s.db.SaveScan(scan); err != nil {
		// Clean up file if database save fails
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to delete file", "filename", savedPath, "error", delErr)
		}
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	slog.Info("Processed receipt", "id", id, "user", userID, "category", result.Category, "matched", result.Matched())
	return scan, nil
}

// Preview extracts and renders lines without OCR or persistence
func (s *Service) Preview(lines []string, category extraction.Category) (*extraction.Result, string, error) {
	result, err := s.extractor.Extract(lines, category)
	if err != nil {
		return nil, "", err
	}
	return result, extraction.Render(result), nil
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all scans
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// DeleteScan removes a scan and its archived image
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if scan.Filename != "" {
		if err := s.storage.Delete(scan.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", scan.Filename, "error", err)
		}
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}

// GetScanFile retrieves the archived image for a scan
func (s *Service) GetScanFile(id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}

	data, err := s.storage.Get(scan.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan file: %w", err)
	}

	return data, scan.ContentType, nil
}
