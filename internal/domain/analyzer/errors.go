package analyzer

import "errors"

// ErrAnalysisFailed covers non-2xx responses and transport failures.
var ErrAnalysisFailed = errors.New("analysis failed")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
// Backends return it wrapped together with ErrAnalysisFailed.
var ErrQuotaExceeded = errors.New("ai quota exceeded")
