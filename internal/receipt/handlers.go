package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-bot/internal/extraction"
	"github.com/zombor/receipt-bot/internal/scanning"
	"github.com/zombor/receipt-bot/internal/session"
)

// maxUploadSize bounds multipart uploads (high-resolution phone photos)
const maxUploadSize = int64(20 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeJSONError writes {"error": message}
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeScanError maps service errors to status codes and user-facing messages
func writeScanError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrEmptyImage), errors.Is(err, scanning.ErrUnsupportedImage):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnreadableImage), errors.Is(err, extraction.ErrPoorImageQuality):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoPendingImage):
		status = http.StatusNotFound
	case errors.Is(err, scanning.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}

	message := UserMessage(err)
	if message == "" {
		message = "Internal server error"
	}
	writeJSONError(w, status, message)
}

// extractResponse is the JSON shape of an extraction preview
type extractResponse struct {
	*extraction.Result
	Report string `json:"report"`
}

type categoryResponse struct {
	ID          extraction.Category `json:"id"`
	DisplayName string              `json:"display_name"`
	Targeted    bool                `json:"targeted"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleListCategories returns the categories users can pick from
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := make([]categoryResponse, 0, len(extraction.Categories))
	for _, c := range extraction.Categories {
		categories = append(categories, categoryResponse{
			ID:          c,
			DisplayName: c.DisplayName(),
			Targeted:    c.Targeted(),
		})
	}
	writeJSON(w, http.StatusOK, categories)
}

// handleExtract classifies already-recognized lines
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines    []string `json:"lines"`
		Category string   `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, report, err := s.service.Preview(req.Lines, extraction.ParseCategory(req.Category))
	if err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Result: result, Report: report})
}

// readUpload reads the "file" part of a multipart form
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 20MB."
		}
		writeJSONError(w, http.StatusBadRequest, errorMsg)
		return "", nil, "", false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeJSONError(w, http.StatusBadRequest, errorMsg)
		return "", nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return "", nil, "", false
	}

	return header.Filename, data, detectContentType(header), true
}

// detectContentType uses the part header, falling back to the file extension
func detectContentType(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleCreateScan uploads, recognizes and classifies a receipt in one request
func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	filename, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}
	category := extraction.ParseCategory(r.FormValue("category"))

	scan, err := s.service.ProcessReceipt(r.Context(), r.FormValue("user"), filename, data, contentType, category)
	if err != nil {
		slog.Error("Error processing receipt", "filename", filename, "error", err)
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scan)
}

// handleGetSession returns the user's stage
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	stage, err := s.service.Stage(r.PathValue("user"))
	if err != nil {
		slog.Error("Error reading stage", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]session.Stage{"stage": stage})
}

// handleSubmitImage stores an image until its category arrives
func (s *Server) handleSubmitImage(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	filename, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}

	if err := s.service.SubmitImage(user, filename, data, contentType); err != nil {
		slog.Error("Error storing image", "user", user, "error", err)
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"stage":      session.StageAwaitingCategory,
		"categories": extraction.Categories,
	})
}

// handleClassifyPending processes the pending image with the chosen category
func (s *Server) handleClassifyPending(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	scan, err := s.service.ClassifyPending(r.Context(), user, extraction.ParseCategory(req.Category))
	if err != nil {
		slog.Error("Error classifying pending image", "user", user, "error", err)
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scan)
}

// handleListScans returns all scans
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan returns a single scan
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.service.GetScan(r.PathValue("id"))
	if err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScanReport returns the rendered report as plain text
func (s *Server) handleGetScanReport(w http.ResponseWriter, r *http.Request) {
	scan, err := s.service.GetScan(r.PathValue("id"))
	if err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, scan.Report)
}

// handleGetScanFile returns the archived image for a scan
func (s *Server) handleGetScanFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetScanFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteScan deletes a scan
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteScan(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrScanNotFound) {
			corsError(w, "Scan not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting scan", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
