package receipt

import (
	"time"

	"github.com/zombor/receipt-bot/internal/extraction"
)

// Scan is a processed receipt: the recognized lines, the extracted fields and
// the rendered report
type Scan struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id,omitempty"`
	Category    extraction.Category `json:"category"`
	Title       string              `json:"title"`
	Targeted    bool                `json:"targeted"`
	Fields      []extraction.Field  `json:"fields"`
	Residuals   []string            `json:"residuals"`
	Lines       []string            `json:"lines"`
	Report      string              `json:"report"`
	Filename    string              `json:"filename,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Result rebuilds the extraction result stored in the scan
func (s *Scan) Result() *extraction.Result {
	return &extraction.Result{
		Category:  s.Category,
		Title:     s.Title,
		Targeted:  s.Targeted,
		Fields:    s.Fields,
		Residuals: s.Residuals,
	}
}
