package logger

import "strings"

// RedactEmail masks a recipient address for safe logging, keeping just
// enough of the local part to correlate log lines during an incident:
// "john.doe@example.com" → "jo***@example.com". Local parts of two
// characters or fewer are fully masked, as is anything that does not
// look like an address at all.
func RedactEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
