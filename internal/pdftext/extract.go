// Package pdftext pulls plain text out of an uploaded PDF so it can be fed
// to the language model.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"server/internal/domain"
)

// Extract returns the concatenated text content of the document. A file
// that cannot be parsed as a PDF, or parses to no text at all, is invalid
// input: there is nothing to review.
func Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document: %w", domain.ErrInvalidInput)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %v: %w", err, domain.ErrInvalidInput)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %v: %w", err, domain.ErrInvalidInput)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read text: %v: %w", err, domain.ErrInvalidInput)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("document contains no text: %w", domain.ErrInvalidInput)
	}
	return text, nil
}
