package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	tenantPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	sessionPattern    = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
	annotationPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateSessionID checks the uuid sessions are created with.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if !sessionPattern.MatchString(id) {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateAnnotationID accepts generated uuids and ids carried in by
// imported reports.
func ValidateAnnotationID(id string) error {
	if !annotationPattern.MatchString(id) {
		return fmt.Errorf("invalid annotation ID format")
	}
	return nil
}

// ValidateFilename rejects names that try to smuggle a path.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("filename too long")
	}
	if filepath.Base(name) != name || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("filename must not contain a path")
	}
	dangerous := []string{"$(", "`", "|", ";", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(name, d) {
			return fmt.Errorf("invalid characters in filename")
		}
	}
	return nil
}

// StripControl drops control characters other than tab and newline and
// leaves spacing untouched.
func StripControl(input string) string {
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage defaults the page number to 1.
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
