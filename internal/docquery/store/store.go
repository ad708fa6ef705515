package store

import (
	"context"
	"errors"
	"strings"
)

// Structured metadata field names as stored on document records.
const (
	FieldSubject  = "Subject"
	FieldNotes    = "Notes"
	FieldFileName = "File Name"
	FieldFrom     = "From"
	FieldTo       = "To"
	FieldCC       = "CC"

	// TextStoragePathKey is the record key pointing at the extracted-text object.
	TextStoragePathKey = "textStoragePath"
)

// MetadataFields is the fixed order in which structured fields are scored and rendered.
var MetadataFields = []string{FieldSubject, FieldNotes, FieldFileName, FieldFrom, FieldTo, FieldCC}

var ErrObjectNotFound = errors.New("object not found")

// Document is a read-only record from a user's document collection.
type Document struct {
	ID              string
	Fields          map[string]string
	TextStoragePath string
}

// Field returns the named metadata field, or "" when absent.
func (d Document) Field(name string) string {
	if d.Fields == nil {
		return ""
	}
	return d.Fields[name]
}

func (d Document) HasTextPath() bool {
	return strings.TrimSpace(d.TextStoragePath) != ""
}

// DocumentStore enumerates the documents under one user's scope.
// Implementations must return documents in a stable enumeration order.
type DocumentStore interface {
	ListDocuments(ctx context.Context, userID string) ([]Document, error)
}

// ObjectStore reads raw bytes of stored text artifacts.
type ObjectStore interface {
	ReadObject(ctx context.Context, path string) ([]byte, error)
}
