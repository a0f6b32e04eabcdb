// Package models defines core data structures for documents, chunks, queries and matches.
package models

import "sort"

// Document is one source document already split into ordered chunk strings.
type Document struct {
	ID     string   `json:"id"`
	Chunks []string `json:"chunks"`
}

// Documents is the inbound corpus. Order is significant: it is the order in
// which chunks are laid out in the chunk store.
type Documents []Document

// DocumentsFromMap converts a document-id -> chunks map into Documents sorted by ID.
func DocumentsFromMap(m map[string][]string) Documents {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make(Documents, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, Document{ID: id, Chunks: m[id]})
	}
	return docs
}

// ChunkCount returns the number of raw chunks, blank ones included.
func (d Documents) ChunkCount() int {
	n := 0
	for _, doc := range d {
		n += len(doc.Chunks)
	}
	return n
}

// StoredChunk is one chunk store row.
type StoredChunk struct {
	DocumentID string `json:"doc"`
	Content    string `json:"chunk"`
}
