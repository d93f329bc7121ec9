package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func markerStart(marker string) string { return fmt.Sprintf("<!-- graphloader:%s:start -->", marker) }

func markerEnd(marker string) string { return fmt.Sprintf("<!-- graphloader:%s:end -->", marker) }

// InjectBlock replaces the content between a marker pair in filePath. The
// file is swapped in through a temp file in the same directory.
func InjectBlock(filePath, marker, block string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read markdown file %q: %w", filePath, err)
	}
	next, err := ReplaceBetweenMarkers(string(content), marker, block)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".graphloader-*.md.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", filePath, err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.WriteString(next)
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp markdown file %q: %w", tmpName, writeErr)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace markdown file %q: %w", filePath, err)
	}
	return nil
}

// ReplaceBetweenMarkers swaps the text between the start and end markers.
// Each marker must appear exactly once and in order. The line ending style
// of content is preserved.
func ReplaceBetweenMarkers(content, marker, replacement string) (string, error) {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return "", fmt.Errorf("markdown marker must not be empty")
	}
	start, end := markerStart(marker), markerEnd(marker)
	if strings.Count(content, start) != 1 || strings.Count(content, end) != 1 {
		return "", fmt.Errorf("markdown marker %q must appear exactly once for start and end", marker)
	}
	startIdx := strings.Index(content, start)
	endIdx := strings.Index(content, end)
	if endIdx < startIdx {
		return "", fmt.Errorf("invalid marker order for %q", marker)
	}

	newline := "\n"
	if strings.Contains(content, "\r\n") {
		newline = "\r\n"
		replacement = strings.ReplaceAll(strings.ReplaceAll(replacement, "\r\n", "\n"), "\n", "\r\n")
	}
	body := strings.TrimRight(replacement, "\r\n")
	return content[:startIdx+len(start)] + newline + body + newline + content[endIdx:], nil
}
