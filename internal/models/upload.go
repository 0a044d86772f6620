package models

import (
	"path/filepath"
	"strings"
)

// UploadedFile is a transient handle to one submitted binary. It is consumed
// once, into the dossier or into document storage, and never persisted.
type UploadedFile struct {
	Name    string
	Content []byte
}

// Ext returns the lower-cased extension without the dot.
func (f *UploadedFile) Ext() string {
	if f == nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
}

// Size returns the content length.
func (f *UploadedFile) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Content))
}

// DocumentKind tells the document store where a stored file belongs.
type DocumentKind string

const (
	DocumentKindDossier DocumentKind = "expediente"
	DocumentKindWork    DocumentKind = "trabajo"
)

// StoredDocument references a persisted document. Ref is what lands in the
// record table: a filesystem path or a shareable link.
type StoredDocument struct {
	ID   string
	Kind DocumentKind
	Ref  string
}
