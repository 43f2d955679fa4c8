package loader

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"unicode/utf8"
)

// CommandRunner executes an external command and returns its stdout.
// Legacy .doc extraction shells out to antiword; the seam exists so tests
// can substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// loadDoc extracts text from a legacy binary Word document via antiword.
// The bytes are staged in a temp file because antiword reads from disk.
func (l *Loader) loadDoc(ctx context.Context, data []byte) ([]Document, error) {
	tmpDir, err := os.MkdirTemp("", "chatbot-rag-doc-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	tmpPath := filepath.Join(tmpDir, "upload.doc")
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing temp file: %w", err)
	}

	out, err := l.runner.Run(ctx, "antiword", "-m", "UTF-8.txt", tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: antiword failed: %v", ErrDecode, err)
	}
	if !utf8.Valid(out) {
		return nil, fmt.Errorf("%w: antiword produced invalid UTF-8", ErrDecode)
	}

	return []Document{{Text: string(out)}}, nil
}
