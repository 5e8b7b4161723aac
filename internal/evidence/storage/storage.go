// Package storage keeps evidence objects in a local directory or on an
// SFTP server. Keys are slash separated and relative to the store root.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"unicode"

	id "rcaflow/pkg/domain"
)

// ObjectStore is implemented by the fs and sftp backends.
type ObjectStore interface {
	// Put writes r under key and returns the number of bytes written.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

const maxFileNameRunes = 120

// Key returns the object key of an evidence file:
// uploads/{companyId}/{analysisId}/{evidenceId}/{filename}.
func Key(companyID id.CompanyID, analysisID id.AnalysisID, evidenceID id.EvidenceID, fileName string) string {
	return path.Join("uploads", companyID.String(), analysisID.String(), evidenceID.String(), SanitizeFileName(fileName))
}

// SanitizeFileName reduces a client supplied name to a single safe path
// element.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == maxFileNameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			continue
		}
		n++
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
