// Package ingestmodel defines the canonical document record produced by
// source adapters and consumed by the chunker, indexer, and prune engine.
package ingestmodel

import (
	"crypto/sha256"
	"encoding/hex"
)

// Reserved metadata keys populated by source adapters and the chunking stage.
const (
	MetaSourceURL      = "source_url"
	MetaRepo           = "repo"
	MetaFilePath       = "file_path"
	MetaBranch         = "branch"
	MetaCommitSHA      = "commit_sha"
	MetaCommitDate     = "commit_date"
	MetaCommitAuthor   = "commit_author"
	MetaCommitMessage  = "commit_message"
	MetaParentID       = "parent_id"
	MetaChunkIndex     = "chunk_index"
	MetaChunkTotal     = "chunk_total"
	MetaIssueNumber    = "issue_number"
	MetaState          = "state"
	MetaLabels         = "labels"
	MetaTitle          = "title"
)

// Item is the canonical unit ingested by the pipeline. Two items with
// different Text MUST NOT share a DocID; the same logical document across
// runs MUST produce the same DocID.
type Item struct {
	DocID    string         `json:"doc_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Checksum string         `json:"checksum"`
}

// Checksum computes the lowercase hex SHA-256 digest of text, the identity
// of an item's content version. Adapters and the chunking stage must use
// this over the exact UTF-8 bytes that became Item.Text.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewItem builds an Item, deriving Checksum from text. Callers own
// Metadata and may mutate it further before the item is emitted.
func NewItem(docID, text string, metadata map[string]any) Item {
	return Item{
		DocID:    docID,
		Text:     text,
		Metadata: metadata,
		Checksum: Checksum(text),
	}
}

// Valid reports whether the item carries a non-empty identity and a
// checksum consistent with its text. An item with empty Text is valid but
// is expected to be dropped downstream by callers per the ingest contract.
func (i Item) Valid() bool {
	return i.DocID != "" && i.Checksum == Checksum(i.Text)
}

// MetaString returns a string-valued metadata entry, or "" if absent or of
// another type.
func (i Item) MetaString(key string) string {
	v, ok := i.Metadata[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
