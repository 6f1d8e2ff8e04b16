package trackclient

// Lead is one CRM record in a bulk-send batch. Only the configured email
// field is interpreted; everything else rides along untouched.
type Lead map[string]any

// Email extracts the lead's address from the given field, or "" when the
// field is absent or not a string.
func (l Lead) Email(field string) string {
	v, ok := l[field]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// SendResult is the provider outcome for one sent lead, parallel by index
// to the leads passed to RecordBatchSend. A zero value means "sent".
type SendResult struct {
	Status    string
	MessageID string
}

// SkippedLead is a lead excluded from a batch, annotated with why.
type SkippedLead struct {
	Lead       Lead   `json:"lead"`
	SkipReason string `json:"skipReason"`
}

// BatchStats summarizes a prepared batch.
type BatchStats struct {
	Total       int `json:"total"`
	New         int `json:"new"`
	AlreadySent int `json:"alreadySent"`
	NoEmail     int `json:"noEmail"`
}

// BatchPlan is the output of PrepareBatch: the leads to actually mail,
// the ones to skip, and aggregate counts. Degraded is true when the
// tracking service was unreachable and every address was assumed new.
type BatchPlan struct {
	ToSend   []Lead        `json:"toSend"`
	Skipped  []SkippedLead `json:"skipped"`
	Stats    BatchStats    `json:"stats"`
	Degraded bool          `json:"degraded"`
}
