package catalog

import "strings"

// Match returns the first record, in insertion order, whose issue text is
// contained in text. Comparison is case-insensitive containment only.
func Match(text string, records []IssueRecord) (IssueRecord, bool) {
	haystack := strings.ToLower(text)
	for _, record := range records {
		needle := strings.ToLower(record.Issue)
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return record, true
		}
	}
	return IssueRecord{}, false
}
