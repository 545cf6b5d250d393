package analysis

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Limits bound what a client may upload.
type Limits struct {
	MaxUploadBytes int64    `yaml:"maxUploadBytes"`
	DocumentTypes  []string `yaml:"documentTypes"`
}

const defaultMaxUpload = 5 << 20

func (l Limits) withDefaults() Limits {
	if l.MaxUploadBytes <= 0 {
		l.MaxUploadBytes = defaultMaxUpload
	}
	if len(l.DocumentTypes) == 0 {
		l.DocumentTypes = []string{".txt", ".md"}
	}
	return l
}

func (l Limits) checkSize(n int) error {
	if int64(n) > l.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, n, l.MaxUploadBytes)
	}
	return nil
}

// checkDocument validates a text upload. An empty filename is pasted text
// and skips the type check.
func (l Limits) checkDocument(filename, content string) error {
	if err := l.checkSize(len(content)); err != nil {
		return err
	}
	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		ok := false
		for _, t := range l.DocumentTypes {
			if strings.EqualFold(t, ext) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedType, ext, strings.Join(l.DocumentTypes, ", "))
		}
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: content is not valid UTF-8", ErrUnsupportedType)
	}
	return nil
}

// checkReport validates a JSON report upload.
func (l Limits) checkReport(filename string, raw []byte) error {
	if err := l.checkSize(len(raw)); err != nil {
		return err
	}
	if filename != "" && !strings.EqualFold(filepath.Ext(filename), ".json") {
		return fmt.Errorf("%w: %q (allowed: .json)", ErrUnsupportedType, filepath.Ext(filename))
	}
	if !json.Valid(raw) {
		return ErrMalformedJSON
	}
	return nil
}
