package mysql

import (
	"encoding/json"
	"strings"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// validJSON returns details when it is valid JSON, otherwise wraps it as
// {"raw": details}. JSON columns reject anything else.
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
