package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"github.com/poiesic/ragingest/core"
	"github.com/tmc/langchaingo/documentloaders"
)

const byteOrderMark = "\ufeff"

// documentExtensions are converted to text by docconv.
var documentExtensions = map[string]bool{
	".html":  true,
	".htm":   true,
	".docx":  true,
	".odt":   true,
	".rtf":   true,
	".xml":   true,
	".doc":   true,
	".pages": true,
}

// readText returns the text content of the file at path.
// Any failure to turn the file into valid UTF-8 text wraps core.ErrDecode.
func readText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		content string
		err     error
	)
	switch {
	case ext == ".pdf":
		content, err = readPDF(path)
	case documentExtensions[ext]:
		content, err = readDocument(path)
	default:
		content, err = readPlain(ctx, path)
	}
	if err != nil {
		return "", err
	}

	content = strings.TrimPrefix(content, byteOrderMark)
	if !utf8.ValidString(content) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", core.ErrDecode, path)
	}
	return content, nil
}

func readPlain(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.PageContent)
	}
	return sb.String(), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening pdf %s: %v", core.ErrDecode, path, err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extracting pdf text from %s: %v", core.ErrDecode, path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("%w: extracting pdf text from %s: %v", core.ErrDecode, path, err)
	}
	return buf.String(), nil
}

func readDocument(path string) (string, error) {
	resp, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: converting %s: %v", core.ErrDecode, path, err)
	}
	return resp.Body, nil
}
