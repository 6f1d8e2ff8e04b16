package trackclient

import (
	"context"

	"github.com/ignite/send-tracker/internal/domain"
	"github.com/ignite/send-tracker/internal/service/tracking"
)

// DefaultEmailField is the lead field consulted when none is given.
const DefaultEmailField = "email"

// PrepareBatch composes the filter-then-record workflow's first half:
// drop leads without an address, ask the tracking service which of the
// rest were already mailed, and return the survivors with per-lead skip
// reasons and aggregate stats.
//
// Leads without an email never touch the network. If the tracking service
// is unreachable the plan is tagged Degraded and every addressed lead goes
// into ToSend.
func (c *Client) PrepareBatch(ctx context.Context, businessID string, leads []Lead, emailField string) *BatchPlan {
	if emailField == "" {
		emailField = DefaultEmailField
	}

	plan := &BatchPlan{
		ToSend:  []Lead{},
		Skipped: []SkippedLead{},
	}
	plan.Stats.Total = len(leads)

	type addressed struct {
		lead Lead
		key  string
	}
	var withEmail []addressed
	var emails []string
	for _, lead := range leads {
		key := tracking.Normalize(lead.Email(emailField))
		if key == "" {
			plan.Skipped = append(plan.Skipped, SkippedLead{Lead: lead, SkipReason: "No email"})
			plan.Stats.NoEmail++
			continue
		}
		withEmail = append(withEmail, addressed{lead: lead, key: key})
		emails = append(emails, key)
	}
	if len(withEmail) == 0 {
		return plan
	}

	outcome := c.CheckDuplicates(ctx, businessID, emails)
	plan.Degraded = outcome.Degraded

	sent := make(map[string]bool, len(outcome.AlreadySent))
	for _, e := range outcome.AlreadySent {
		sent[e] = true
	}
	for _, a := range withEmail {
		if sent[a.key] {
			plan.Skipped = append(plan.Skipped, SkippedLead{Lead: a.lead, SkipReason: "Already sent"})
			plan.Stats.AlreadySent++
		} else {
			plan.ToSend = append(plan.ToSend, a.lead)
			plan.Stats.New++
		}
	}
	return plan
}

// RecordBatchSend zips sent leads with their parallel provider results
// (by index; the caller guarantees matching length and order) and reports
// them to the tracking service. Missing results default to "sent" with no
// message id.
func (c *Client) RecordBatchSend(ctx context.Context, businessID string, sentLeads []Lead, results []SendResult, subject, campaignID string) *RecordOutcome {
	entries := make([]RecordEntry, 0, len(sentLeads))
	for i, lead := range sentLeads {
		entry := RecordEntry{
			Email:  lead.Email(DefaultEmailField),
			Status: domain.StatusSent,
		}
		if name, _ := lead["name"].(string); name != "" {
			entry.Name = name
		}
		if i < len(results) {
			if results[i].Status != "" {
				entry.Status = results[i].Status
			}
			entry.MailgunID = results[i].MessageID
		}
		entries = append(entries, entry)
	}
	return c.RecordSends(ctx, businessID, entries, campaignID, subject)
}
