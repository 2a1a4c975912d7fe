package models

import "strings"

// BinaryRef is an opaque reference to externally stored binary data in the
// form "<mode>:<id>", e.g. "filesystem:3f9a...". Items carry references
// instead of raw bytes.
type BinaryRef string

// Split returns the mode and id halves of the reference.
func (r BinaryRef) Split() (mode, id string) {
	parts := strings.SplitN(string(r), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}

	return parts[0], parts[1]
}

// BinaryItem describes one binary attachment of an execution item. Either
// Ref points at stored data or Data holds the base64-encoded payload inline.
type BinaryItem struct {
	Ref      BinaryRef `json:"ref,omitempty"`
	Data     string    `json:"data,omitempty"` // base64, inline mode only
	MimeType string    `json:"mime_type,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	FileSize int64     `json:"file_size,omitempty"`
}

// PairedItem back-references the item in the upstream node's output that
// produced this item, for lineage tracking.
type PairedItem struct {
	Item  int `json:"item"`
	Input int `json:"input,omitempty"`
}

// ExecutionItem is one unit of data flowing along a connection.
type ExecutionItem struct {
	JSON       map[string]any        `json:"json"`
	Binary     map[string]BinaryItem `json:"binary,omitempty"`
	PairedItem []PairedItem          `json:"paired_item,omitempty"`
}

// NewItem creates an item with the given JSON payload.
func NewItem(data map[string]any) ExecutionItem {
	if data == nil {
		data = make(map[string]any)
	}

	return ExecutionItem{JSON: data}
}

// NewErrorItem creates an error-carrying item paired to input item index,
// used by continue-on-fail recovery.
func NewErrorItem(message string, index int) ExecutionItem {
	return ExecutionItem{
		JSON:       map[string]any{"error": message},
		PairedItem: []PairedItem{{Item: index}},
	}
}

// CopyItems duplicates an item slice with fresh Binary maps, so a consumer
// that rewrites binary references does not touch the originals. The JSON
// payloads stay shared.
func CopyItems(items []ExecutionItem) []ExecutionItem {
	copied := make([]ExecutionItem, len(items))
	copy(copied, items)

	for i := range copied {
		if len(items[i].Binary) == 0 {
			continue
		}

		binary := make(map[string]BinaryItem, len(items[i].Binary))
		for key, value := range items[i].Binary {
			binary[key] = value
		}

		copied[i].Binary = binary
	}

	return copied
}
