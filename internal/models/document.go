// Package models defines core data structures for documents, chunks, and query records.
package models

import "time"

// Page is the raw text extracted from one page of the source document.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document describes one ingested document generation. A new ingest replaces
// the previous generation wholesale; documents are never partially updated.
type Document struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Pages     []Page    `json:"pages"`
	Chunks    []Chunk   `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is a contiguous span of document text used as the unit of retrieval.
// Start and End are rune offsets into the page-joined document text. Page is
// the page containing the majority of the chunk's characters.
type Chunk struct {
	Index int    `json:"index"`
	Page  int    `json:"page"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}
