package service

import (
	"strings"
	"unicode/utf8"

	"github.com/tieubaoca/docqa/types"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 20
)

var DefaultDocumentServiceConfig = types.DocumentServiceConfig{
	MaxChunkSize: DefaultChunkSize,
	OverlapSize:  DefaultChunkOverlap,
}

// defaultSeparators go from the largest semantic boundary to single characters:
// paragraph, line, sentence, word, character.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// TextSplitter splits text recursively on the largest available boundary and
// merges the pieces into chunks of at most maxChunkSize runes, with up to
// overlapSize runes carried over between consecutive chunks.
type TextSplitter struct {
	maxChunkSize int
	overlapSize  int
	separators   []string
}

func NewTextSplitter(config types.DocumentServiceConfig) (*TextSplitter, error) {
	if config.MaxChunkSize <= 0 || config.OverlapSize < 0 || config.OverlapSize >= config.MaxChunkSize {
		return nil, &types.ConfigError{Size: config.MaxChunkSize, Overlap: config.OverlapSize}
	}
	return &TextSplitter{
		maxChunkSize: config.MaxChunkSize,
		overlapSize:  config.OverlapSize,
		separators:   defaultSeparators,
	}, nil
}

// Split is deterministic. Empty or whitespace-only text yields no chunks.
func (s *TextSplitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *TextSplitter) split(text string, separators []string) []string {
	var chunks []string

	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var pending []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < s.maxChunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
		if len(remaining) == 0 {
			if chunk := strings.TrimSpace(piece); chunk != "" {
				chunks = append(chunks, chunk)
			}
		} else {
			chunks = append(chunks, s.split(piece, remaining)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}
	return chunks
}

// merge greedily packs pieces into chunks. When a chunk is emitted, pieces
// are dropped from the front until at most overlapSize runes remain; those
// become the head of the next chunk.
func (s *TextSplitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	var lengths []int
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.maxChunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.overlapSize || (total+n > s.maxChunkSize && total > 0) {
				total -= lengths[0]
				current = current[1:]
				lengths = lengths[1:]
			}
		}
		current = append(current, piece)
		lengths = append(lengths, n)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepSeparator splits text on sep and keeps each separator at the start
// of the piece that follows it. An empty sep splits into runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, part := range parts[1:] {
		pieces = append(pieces, sep+part)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
