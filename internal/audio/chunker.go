// Package audio turns a final script into narrated audio: it chunks the
// script under word-count and newline constraints, drives per-segment
// speech synthesis, and assembles the result with ffmpeg.
package audio

import (
	"strings"
	"unicode"
)

// Chunking bounds. A chunk is cut at the first newline after its 700th
// word; if no newline appears before the 1000th word the cut is forced
// there and the chunk is marked imperfect. TTS providers degrade on very
// long inputs, hence the hard ceiling.
const (
	MinChunkWords = 700
	MaxChunkWords = 1000
	MaxSegments   = 22
)

// Chunk is one contiguous slice of the script destined for a single
// synthesis call.
type Chunk struct {
	Text      string
	Words     int
	Imperfect bool // forced cut without a newline boundary
}

type wordSpan struct {
	start, end int // byte offsets, end exclusive
}

func wordSpans(s string) []wordSpan {
	var spans []wordSpan
	inWord := false
	start := 0
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord {
				spans = append(spans, wordSpan{start, i})
				inWord = false
			}
		} else if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		spans = append(spans, wordSpan{start, len(s)})
	}
	return spans
}

// Split partitions script into at most MaxSegments chunks. Chunks are
// contiguous slices of the input, so concatenating them reproduces the
// script byte for byte. Empty or whitespace-only input yields no chunks.
func Split(script string) []Chunk {
	spans := wordSpans(script)
	if len(spans) == 0 {
		return nil
	}

	var chunks []Chunk
	cursor := 0 // word index
	offset := 0 // byte offset of the current chunk start
	for cursor < len(spans) {
		remaining := len(spans) - cursor
		if remaining <= MinChunkWords {
			chunks = append(chunks, Chunk{
				Text:  script[offset:],
				Words: remaining,
			})
			break
		}

		// Look for a newline between the end of the 700th word and the
		// end of the 1000th (clamped to the script's last word).
		windowFrom := spans[cursor+MinChunkWords-1].end
		lastIdx := cursor + MaxChunkWords
		if lastIdx > len(spans) {
			lastIdx = len(spans)
		}
		windowTo := spans[lastIdx-1].end

		if nl := strings.IndexByte(script[windowFrom:windowTo], '\n'); nl >= 0 {
			cut := windowFrom + nl + 1
			next := cursor + MinChunkWords
			for next < len(spans) && spans[next].start < cut {
				next++
			}
			chunks = append(chunks, Chunk{
				Text:  script[offset:cut],
				Words: next - cursor,
			})
			cursor = next
			offset = cut
			continue
		}

		if remaining <= MaxChunkWords {
			chunks = append(chunks, Chunk{
				Text:      script[offset:],
				Words:     remaining,
				Imperfect: true,
			})
			break
		}

		cut := spans[cursor+MaxChunkWords-1].end
		chunks = append(chunks, Chunk{
			Text:      script[offset:cut],
			Words:     MaxChunkWords,
			Imperfect: true,
		})
		cursor += MaxChunkWords
		offset = cut
	}

	if len(chunks) > MaxSegments {
		merged := chunks[MaxSegments-1]
		for _, c := range chunks[MaxSegments:] {
			merged.Text += c.Text
			merged.Words += c.Words
			merged.Imperfect = merged.Imperfect || c.Imperfect
		}
		chunks = append(chunks[:MaxSegments-1], merged)
	}
	return chunks
}
