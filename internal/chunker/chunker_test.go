package chunker

import (
	"strings"
	"testing"

	"ingestcore/internal/ingestmodel"
)

func TestSplitNoChunkingWhenSizeZero(t *testing.T) {
	parent := ingestmodel.NewItem("doc", "para one\n\npara two", nil)
	out := Split(parent, Options{})
	if len(out) != 1 || out[0].DocID != "doc" {
		t.Fatalf("expected unchanged single item, got %+v", out)
	}
}

func TestSplitProducesParentIDAndChunkTotal(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50) + "\n\n" + strings.Repeat("c", 50)
	parent := ingestmodel.NewItem("doc", text, map[string]any{"repo": "r"})
	out := Split(parent, Options{ChunkSize: 60, Overlap: 10})
	if len(out) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(out))
	}
	total := len(out)
	for idx, c := range out {
		if c.Metadata[ingestmodel.MetaParentID] != "doc" {
			t.Fatalf("chunk %d missing parent_id", idx)
		}
		if c.Metadata[ingestmodel.MetaChunkIndex] != idx {
			t.Fatalf("chunk %d has wrong chunk_index %v", idx, c.Metadata[ingestmodel.MetaChunkIndex])
		}
		if c.Metadata[ingestmodel.MetaChunkTotal] != total {
			t.Fatalf("chunk %d has wrong chunk_total %v, want %d", idx, c.Metadata[ingestmodel.MetaChunkTotal], total)
		}
		if c.Metadata["repo"] != "r" {
			t.Fatalf("chunk %d did not inherit parent metadata", idx)
		}
		if c.DocID != "doc#c"+itoa(idx) {
			t.Fatalf("unexpected chunk doc id %q", c.DocID)
		}
		if c.Checksum != ingestmodel.Checksum(c.Text) {
			t.Fatalf("chunk %d checksum does not match its own text", idx)
		}
	}
}

func TestSplitSingleChunkReturnsParentUnchanged(t *testing.T) {
	parent := ingestmodel.NewItem("doc", "short text", nil)
	out := Split(parent, Options{ChunkSize: 4096, Overlap: 200})
	if len(out) != 1 || out[0].DocID != "doc" {
		t.Fatalf("expected text under chunk_size to pass through unchanged, got %+v", out)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}
