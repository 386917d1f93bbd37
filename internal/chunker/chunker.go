// Package chunker splits long ingest items into overlapping chunks so the
// indexer embeds text at a size the embedding model handles well.
//
// The algorithm is grounded on the teacher's rag/chunker.SimpleChunker
// paragraph/markdown strategies, specialized to the single paragraph-greedy
// strategy the ingestion spec requires: split on blank-line paragraph
// boundaries, greedily pack a buffer up to chunk_size, and seed the next
// buffer with the overlap characters of the chunk just emitted.
package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"ingestcore/internal/ingestmodel"
)

// DefaultOverlap is used when a caller enables chunking without specifying
// an overlap, per the ingest job payload contract (chunk_overlap defaults
// to 200 when chunk_size is set).
const DefaultOverlap = 200

var paragraphBoundary = regexp.MustCompile(`\n{2,}`)

// Options controls chunk sizing. A ChunkSize of 0 disables chunking: Split
// returns the source item unchanged.
type Options struct {
	ChunkSize int
	Overlap   int
}

// paragraphs splits text into paragraphs at sequences of two or more line
// terminators, dropping paragraphs that are only whitespace.
func paragraphs(text string) []string {
	raw := paragraphBoundary.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// pack greedily accumulates paragraphs into buffers, starting a new buffer
// when the next paragraph would push the current one past chunkSize, and
// seeding each new buffer with the trailing overlap characters of the
// previous buffer. Paragraphs are never split, so a single paragraph longer
// than chunkSize (plus the seeded overlap) yields a buffer over chunkSize. chunk_total is known only once packing
// completes, matching the spec's "two-pass or buffered" requirement.
func pack(paras []string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return []string{strings.Join(paras, "\n\n")}
	}
	var chunks []string
	var buf strings.Builder
	flush := func() {
		if s := buf.String(); strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
	}
	seed := func(prev string) {
		if overlap <= 0 || prev == "" {
			return
		}
		tail := prev
		if len(tail) > overlap {
			tail = tail[len(tail)-overlap:]
		}
		buf.WriteString(tail)
	}
	for _, p := range paras {
		if buf.Len() > 0 && buf.Len()+2+len(p) > chunkSize {
			prev := buf.String()
			flush()
			seed(prev)
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	flush()
	return chunks
}

// Split turns a parent ingest item into one or more chunk items. When
// opt.ChunkSize <= 0 or the text fits in a single chunk, it returns the
// parent item unchanged (no "#c0" suffix, no chunk_total metadata) per the
// boundary behavior "chunk_size == 0 or absent: source items are emitted
// unchanged".
func Split(parent ingestmodel.Item, opt Options) []ingestmodel.Item {
	if opt.ChunkSize <= 0 {
		return []ingestmodel.Item{parent}
	}
	overlap := opt.Overlap
	if overlap < 0 {
		overlap = 0
	}
	paras := paragraphs(parent.Text)
	if len(paras) == 0 {
		return []ingestmodel.Item{parent}
	}
	bodies := pack(paras, opt.ChunkSize, overlap)
	if len(bodies) <= 1 {
		return []ingestmodel.Item{parent}
	}
	total := len(bodies)
	out := make([]ingestmodel.Item, 0, total)
	for idx, body := range bodies {
		meta := make(map[string]any, len(parent.Metadata)+3)
		for k, v := range parent.Metadata {
			meta[k] = v
		}
		meta[ingestmodel.MetaParentID] = parent.DocID
		meta[ingestmodel.MetaChunkIndex] = idx
		meta[ingestmodel.MetaChunkTotal] = total
		out = append(out, ingestmodel.NewItem(chunkDocID(parent.DocID, idx), body, meta))
	}
	return out
}

// SplitAll applies Split to each item in sequence, flattening the result.
func SplitAll(items []ingestmodel.Item, opt Options) []ingestmodel.Item {
	out := make([]ingestmodel.Item, 0, len(items))
	for _, it := range items {
		out = append(out, Split(it, opt)...)
	}
	return out
}

func chunkDocID(parent string, index int) string {
	return parent + "#c" + strconv.Itoa(index)
}
