package tracking

import "strings"

// Normalize canonicalizes a raw email address into the identity used for
// all comparisons and storage: lowercased and trimmed. An empty or
// whitespace-only input normalizes to "" and is skipped by callers rather
// than failing a whole batch.
//
// No further escaping is applied; the store keys rows by
// (business_id, email) directly.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
