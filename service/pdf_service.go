package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
)

// Extractor turns a raw document into plain text.
type Extractor interface {
	Extract(ctx context.Context, doc types.Document) (string, error)
}

// PageFallback is consulted for pages the PDF parser yields no text for.
type PageFallback interface {
	ExtractPage(ctx context.Context, doc types.Document, pageNum int) (string, error)
}

// PDFService extracts text from PDF documents held in memory.
type PDFService struct {
	logger   *zap.Logger
	fallback PageFallback
}

// NewPDFService creates a PDF extractor. fallback may be nil.
func NewPDFService(logger *zap.Logger, fallback PageFallback) *PDFService {
	return &PDFService{
		logger:   logger,
		fallback: fallback,
	}
}

// Extract concatenates the text of every page in order, without separators.
// Pages without extractable text contribute nothing and are logged; only a
// document that cannot be opened at all is an error.
func (s *PDFService) Extract(ctx context.Context, doc types.Document) (string, error) {
	start := time.Now()
	log := s.logger.With(zap.String("document", doc.Name))
	log.Info("Starting PDF text extraction")

	reader, totalPages, err := openPDF(doc.Data)
	if err != nil {
		return "", &types.ExtractionError{Document: doc.Name, Err: err}
	}

	var text strings.Builder
	emptyPages := 0
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", &types.ExtractionError{Document: doc.Name, Err: err}
		}
		pageText, err := s.extractPage(ctx, reader, doc, pageNum)
		if err != nil {
			log.Warn("page yielded no extractable text",
				zap.Int("page", pageNum),
				zap.Int("total_pages", totalPages),
				zap.Error(err),
			)
			emptyPages++
			continue
		}
		text.WriteString(pageText)
	}

	log.Info("Completed PDF text extraction",
		zap.Int("pages", totalPages),
		zap.Int("empty_pages", emptyPages),
		zap.Int("characters", text.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text.String(), nil
}

var errNoPageText = errors.New("no text on page")

func (s *PDFService) extractPage(ctx context.Context, reader *pdf.Reader, doc types.Document, pageNum int) (string, error) {
	text, err := plainText(reader, pageNum)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errNoPageText
	}
	if err == nil {
		return text, nil
	}
	if s.fallback == nil {
		return "", err
	}
	fallbackText, ferr := s.fallback.ExtractPage(ctx, doc, pageNum)
	if ferr != nil {
		return "", fmt.Errorf("%v; fallback: %w", err, ferr)
	}
	return fallbackText, nil
}

// openPDF parses the cross-reference table and page tree. The parser panics
// on some malformed inputs, which are reported as errors.
func openPDF(data []byte) (reader *pdf.Reader, totalPages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, totalPages, err = nil, 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, err
	}
	return reader, reader.NumPage(), nil
}

func plainText(reader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed page: %v", r)
		}
	}()
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", errors.New("page object missing")
	}
	return page.GetPlainText(nil)
}

// PdftotextFallback extracts a single page with the poppler pdftotext utility.
type PdftotextFallback struct {
	Command string
	TempDir string
}

func NewPdftotextFallback() *PdftotextFallback {
	return &PdftotextFallback{Command: "pdftotext"}
}

func (f *PdftotextFallback) ExtractPage(ctx context.Context, doc types.Document, pageNumber int) (string, error) {
	tmp, err := os.CreateTemp(f.TempDir, "docqa-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(doc.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.Command, "-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-enc", "UTF-8", "-nopgbrk",
		tmp.Name(), "-")
	var txtOut bytes.Buffer
	cmd.Stdout = &txtOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s page %d: %w", f.Command, pageNumber, err)
	}
	if trimmed := strings.TrimSpace(txtOut.String()); len(trimmed) > 0 {
		return trimmed, nil
	}
	return "", fmt.Errorf("got nothing at page %d", pageNumber)
}
