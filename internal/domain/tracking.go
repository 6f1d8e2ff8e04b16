package domain

import "time"

// SendStatus is the per-recipient outcome of a send attempt. Providers may
// report statuses beyond these two; anything else is stored verbatim.
type SendStatus = string

const (
	StatusSent   SendStatus = "sent"
	StatusFailed SendStatus = "failed"
)

// EmailEntry holds the send state for one normalized address within a
// business's tracking record.
type EmailEntry struct {
	Email      string     `json:"email"`
	FirstSent  time.Time  `json:"firstSent"`
	LastSent   time.Time  `json:"lastSent"`
	LastStatus SendStatus `json:"lastStatus"`
	SendCount  int        `json:"sendCount"`
}

// TrackingRecord aggregates all send state for one business. TotalSends is
// always the sum of SendCount over Emails; both are maintained by atomic
// increments in the same storage transaction.
type TrackingRecord struct {
	BusinessID  string                `json:"businessId"`
	Emails      map[string]EmailEntry `json:"emails"`
	TotalSends  int                   `json:"totalSends"`
	LastUpdated time.Time             `json:"lastUpdated"`
}

// Recipient is one address in a recorded campaign, stored with its
// normalized (lowercased, trimmed) email.
type Recipient struct {
	Email             string     `json:"email"`
	Name              string     `json:"name,omitempty"`
	Status            SendStatus `json:"status"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
}

// CampaignStats holds the outcome counts computed when a campaign is
// recorded. Total always equals the recipient count; Sent+Failed may be
// less when providers report other statuses.
type CampaignStats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Campaign is one immutable history entry: a single bulk-send operation
// with its full recipient list and outcome counts. Entries are never
// mutated or individually deleted after insert.
type Campaign struct {
	ID         string        `json:"id"`
	BusinessID string        `json:"businessId"`
	CampaignID string        `json:"campaignId"`
	Subject    string        `json:"emailSubject"`
	SentAt     time.Time     `json:"sentAt"`
	Recipients []Recipient   `json:"recipients"`
	Stats      CampaignStats `json:"stats"`
}
