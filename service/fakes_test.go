package service

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/types"
)

const fakeEmbeddingDim = 64

// hashEmbedder is a deterministic bag-of-words embedder.
type hashEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	err     error
	// short drops the last vector of every batch.
	short bool
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.batches = append(e.batches, append([]string(nil), texts...))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, bagOfWords(text))
	}
	if e.short && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	return vectors, nil
}

func (e *hashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func bagOfWords(text string) []float32 {
	v := make([]float32, fakeEmbeddingDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%fakeEmbeddingDim]++
	}
	return v
}

// stubGenerator returns canned answers and records prompts.
type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) (string, error)
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.answer == nil {
		return "stub answer", nil
	}
	return g.answer(prompt)
}

func (g *stubGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// fakeExtractor treats the document bytes as its text. Documents named in
// fail are unreadable; documents named in slow block until ctx is done.
type fakeExtractor struct {
	fail map[string]bool
	slow map[string]bool
}

func (f *fakeExtractor) Extract(ctx context.Context, doc types.Document) (string, error) {
	if f.slow[doc.Name] {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
	if f.fail[doc.Name] {
		return "", &types.ExtractionError{Document: doc.Name, Err: fmt.Errorf("corrupt")}
	}
	return string(doc.Data), nil
}

// failingBackend rejects every index.
type failingBackend struct{}

func (failingBackend) Name() string { return "failing" }

func (failingBackend) NewIndex(context.Context, []types.Chunk, [][]float32) (database.VectorIndex, error) {
	return nil, fmt.Errorf("backend unavailable")
}

// trackingIndex records Close calls.
type trackingIndex struct {
	database.VectorIndex
	mu     sync.Mutex
	closed bool
}

func (t *trackingIndex) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.VectorIndex.Close(ctx)
}

func (t *trackingIndex) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// buildPDF writes a minimal PDF with one Helvetica text line per page. An
// empty string produces a page without text.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	addObject := func(body string) int {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
		return len(offsets)
	}

	buf.WriteString("%PDF-1.4\n")
	addObject("<< /Type /Catalog /Pages 2 0 R >>")
	pagesIdx := len(offsets)
	offsets = append(offsets, 0) // placeholder, written last
	fontID := addObject("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var kids []string
	for _, text := range pages {
		content := "q Q"
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		contentID := addObject(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		pageID := addObject(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontID, contentID))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID))
	}
	offsets[pagesIdx] = buf.Len()
	fmt.Fprintf(&buf, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), len(pages))

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
