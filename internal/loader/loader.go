// Package loader turns raw uploaded bytes into plain text documents.
//
// Dispatch is by file extension first, declared MIME type second. Supported
// formats: pdf, doc, docx, md, txt. Loading is a pure transform: no side
// effects, and multi-part sources (PDF pages) keep their source order.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedFormat indicates neither the file extension nor the
	// declared MIME type matches a supported format.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrDecode indicates the file bytes could not be decoded as text.
	ErrDecode = errors.New("failed to decode file content")
)

// Document is one logical plain-text unit extracted from a file.
// A PDF yields one Document per page; md/txt yield a single Document.
type Document struct {
	Text string
	Meta map[string]string
}

// format identifiers used for dispatch.
const (
	formatPDF  = "pdf"
	formatDoc  = "doc"
	formatDocx = "docx"
	formatMD   = "md"
	formatTxt  = "txt"
)

// extensionFormats maps file extensions to formats.
var extensionFormats = map[string]string{
	".pdf":  formatPDF,
	".doc":  formatDoc,
	".docx": formatDocx,
	".md":   formatMD,
	".txt":  formatTxt,
}

// mimeFormats maps declared MIME types to formats.
var mimeFormats = map[string]string{
	"application/pdf":    formatPDF,
	"application/msword": formatDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": formatDocx,
	"text/markdown": formatMD,
	"text/plain":    formatTxt,
}

// Loader extracts plain text from supported file formats.
type Loader struct {
	runner CommandRunner
}

// Option configures a Loader.
type Option func(*Loader)

// WithCommandRunner replaces the external command runner used for legacy
// .doc extraction. Tests inject a fake here.
func WithCommandRunner(r CommandRunner) Option {
	return func(l *Loader) {
		l.runner = r
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{runner: execRunner{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// detectFormat resolves the format from extension or declared MIME type.
// Returns "" when the file is unsupported.
func detectFormat(name, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	// Strip MIME parameters such as "; charset=utf-8".
	if mt, _, found := strings.Cut(mimeType, ";"); found {
		mimeType = mt
	}
	if f, ok := mimeFormats[strings.TrimSpace(strings.ToLower(mimeType))]; ok {
		return f
	}
	return ""
}

// Supported reports whether a file with the given name and declared MIME
// type can be loaded. The ingestion pipeline uses this to fail fast before
// any remote call.
func Supported(name, mimeType string) bool {
	return detectFormat(name, mimeType) != ""
}

// Load extracts plain text documents from the file bytes.
// It fails with ErrUnsupportedFormat when the format cannot be determined
// and ErrDecode when the bytes are not valid for the detected format.
func (l *Loader) Load(ctx context.Context, data []byte, name, mimeType string) ([]Document, error) {
	switch detectFormat(name, mimeType) {
	case formatPDF:
		return loadPDF(data)
	case formatDocx:
		return loadDocx(data)
	case formatDoc:
		return l.loadDoc(ctx, data)
	case formatMD, formatTxt:
		return loadPlainText(data)
	default:
		return nil, fmt.Errorf("%w: %q (mime %q)", ErrUnsupportedFormat, name, mimeType)
	}
}

// loadPlainText decodes md/txt bytes as UTF-8 into a single document.
func loadPlainText(data []byte) ([]Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrDecode)
	}
	return []Document{{Text: string(data)}}, nil
}
