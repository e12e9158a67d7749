package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// ErrUnsupportedImage is returned for uploads that are not a decodable image or PDF
var ErrUnsupportedImage = errors.New("unsupported image format (use JPEG, PNG, GIF, HEIC, HEIF or PDF)")

// systemInstruction frames the LLM providers as transcribers
const systemInstruction = "You transcribe receipts verbatim. You never summarize or explain."

// transcribePrompt is sent to the LLM providers with every receipt image
const transcribePrompt = `You are an OCR engine reading a photographed or scanned payment receipt.
Transcribe every piece of text you can see, exactly as printed or handwritten.

Rules:
- Output one visual line of the receipt per output line, top to bottom, left to right
- Keep currency symbols, punctuation, labels and colons exactly as shown (e.g. "Paid to", "₹ 1,250.00", "UPI Ref No: 4123...")
- Do not translate, summarize, correct or reorder anything
- Do not add commentary, numbering or markdown
- If there is no readable text, output exactly ` + noTextMarker

type sourceFormat int

const (
	formatRaster sourceFormat = iota
	formatPNG
	formatPDF
	formatHEIC
)

// heicBrands are the ISO-BMFF major brands used by HEIC/HEIF files
var heicBrands = map[string]bool{"heic": true, "heix": true, "heif": true, "mif1": true, "msf1": true}

// detectFormat trusts the declared type and sniffs the bytes when it is missing
// or generic
func detectFormat(data []byte, contentType string) sourceFormat {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if hasHEICBrand(data) || strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return formatHEIC
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	switch mimeType {
	case "image/png":
		return formatPNG
	case "application/pdf":
		return formatPDF
	default:
		return formatRaster
	}
}

func hasHEICBrand(data []byte) bool {
	return len(data) >= 12 && string(data[4:8]) == "ftyp" && heicBrands[string(data[8:12])]
}

// NormalizeImage returns the upload as PNG. PNG input is passed through, a PDF
// contributes its first page.
func NormalizeImage(data []byte, contentType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)

	switch detectFormat(data, contentType) {
	case formatPNG:
		return data, nil
	case formatPDF:
		img, err = firstPage(data)
	case formatHEIC:
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedImage
		}
		if err != nil {
			err = fmt.Errorf("decoding image: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// firstPage renders page one of a PDF. Receipts are single page.
func firstPage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}
