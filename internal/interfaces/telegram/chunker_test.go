package telegram

import (
	"strings"
	"testing"
)

func TestChunkTextShortPassthrough(t *testing.T) {
	chunks := ChunkText("hello")
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestChunkTextSplitsAtParagraphs(t *testing.T) {
	para := strings.Repeat("a", 3000)
	text := para + "\n\n" + para

	chunks := ChunkText(text)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > MessageLimit {
			t.Fatalf("chunk %d exceeds limit: %d", i, len(c))
		}
	}
	if chunks[0] != para {
		t.Fatal("first chunk is not the first paragraph")
	}
}

func TestChunkTextHardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", MessageLimit*2+10)
	chunks := ChunkText(text)

	var total int
	for i, c := range chunks {
		if len(c) > MessageLimit {
			t.Fatalf("chunk %d exceeds limit: %d", i, len(c))
		}
		total += len(c)
	}
	if total != len(text) {
		t.Fatalf("reassembled length = %d, want %d", total, len(text))
	}
}

func TestChunkTextPrefersSentences(t *testing.T) {
	sentence := strings.Repeat("b", 120) + ". "
	text := strings.Repeat(sentence, 60) // ~7300 chars

	chunks := ChunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want a split", len(chunks))
	}
	if !strings.HasSuffix(strings.TrimRight(chunks[0], " "), ".") {
		t.Fatalf("first chunk does not end at a sentence: %q", chunks[0][len(chunks[0])-10:])
	}
}
