package postgres

import (
	"encoding/json"
	"strings"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// validJSON wraps anything that is not JSON as {"raw": ...} for JSONB.
func validJSON(details string) string {
	if strings.TrimSpace(details) == "" {
		return "{}"
	}
	var js any
	if json.Unmarshal([]byte(details), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": details})
		return string(b)
	}
	return details
}
