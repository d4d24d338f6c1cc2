package toolkit

import "regexp"

// maskPatterns match the sensitive-info shapes §4.11 requires be redacted
// from logged input previews: emails, phone numbers, credit-card-like runs
// of digits. These are simple pattern matches, not a general-purpose PII
// scrubber, so plain regexp is enough — no example repo carries a dedicated
// redaction library.
var maskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`\b(?:\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
}

const maskPlaceholder = "***"

// maskSensitive replaces occurrences of the known sensitive-info shapes
// with a fixed placeholder.
func maskSensitive(s string) string {
	for _, re := range maskPatterns {
		s = re.ReplaceAllString(s, maskPlaceholder)
	}
	return s
}

// previewLength is how much of a masked input is logged (§4.11 "first
// 200 chars").
const previewLength = 200

// maskedPreview returns a masked, length-capped preview of s for logging.
func maskedPreview(s string) string {
	masked := maskSensitive(s)
	if len(masked) > previewLength {
		return masked[:previewLength]
	}
	return masked
}
