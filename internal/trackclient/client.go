// Package trackclient is the client side of the send-tracking API, used
// by the bulk-send workflow.
//
// The client is deliberately fail-open: if the tracking service or its
// storage is unreachable, CheckDuplicates assumes every address is new and
// RecordSends reports a non-success outcome instead of returning an error.
// For a marketing send, an occasional duplicate during an outage is
// cheaper than a blocked campaign. Degraded outcomes are tagged so callers
// and telemetry can tell "verified new" from "assumed new".
package trackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/send-tracker/internal/pkg/httpretry"
	"github.com/ignite/send-tracker/internal/pkg/logger"
	"github.com/ignite/send-tracker/internal/service/tracking"
)

// Client calls the send-tracking HTTP API.
type Client struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
	log        *logger.Logger
}

// New creates a tracking API client. baseURL includes the mount prefix,
// e.g. "http://localhost:8080/api/email-tracking". A nil doer gets a
// retrying default client.
func New(baseURL string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.New(nil, 3)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: doer,
		log:        logger.Named("trackclient"),
	}
}

// DedupOutcome is a duplicate-check answer. When Degraded is true the
// check could not be verified against storage and every address was
// assumed new.
type DedupOutcome struct {
	AlreadySent []string
	NewEmails   []string
	Stats       tracking.DedupStats
	Degraded    bool
}

// CheckDuplicates asks the tracking service which addresses were already
// mailed. It never returns an error: on any failure it degrades to
// treating every address as new.
func (c *Client) CheckDuplicates(ctx context.Context, businessID string, emails []string) *DedupOutcome {
	var out struct {
		AlreadySent []string            `json:"alreadySent"`
		NewEmails   []string            `json:"newEmails"`
		Stats       tracking.DedupStats `json:"stats"`
	}
	err := c.post(ctx, "/check-duplicates", map[string]any{
		"businessId": businessID,
		"emails":     emails,
	}, &out)
	if err != nil {
		c.log.Warn("duplicate check degraded, assuming all new",
			"businessId", businessID, "count", len(emails), "error", err)
		return degradedOutcome(emails)
	}
	return &DedupOutcome{
		AlreadySent: out.AlreadySent,
		NewEmails:   out.NewEmails,
		Stats:       out.Stats,
	}
}

// degradedOutcome classifies every address as new without consulting
// storage. Normalization still applies so downstream comparisons match
// what a verified check would have returned.
func degradedOutcome(emails []string) *DedupOutcome {
	out := &DedupOutcome{
		AlreadySent: []string{},
		NewEmails:   []string{},
		Degraded:    true,
	}
	out.Stats.Checked = len(emails)
	for _, raw := range emails {
		key := tracking.Normalize(raw)
		if key == "" {
			continue
		}
		out.NewEmails = append(out.NewEmails, key)
		out.Stats.New++
	}
	return out
}

// RecordEntry is one recipient reported to the tracking service.
type RecordEntry struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status,omitempty"`
	MailgunID string `json:"mailgunId,omitempty"`
}

// RecordOutcome reports a RecordSends attempt. Success false with
// Recorded 0 means the send state was NOT persisted; the addresses will
// show as new on the next duplicate check.
type RecordOutcome struct {
	Success    bool
	Recorded   int
	CampaignID string
}

// RecordSends reports a completed batch to the tracking service. It never
// returns an error: a failure yields a non-success outcome so the calling
// workflow can finish the campaign regardless.
func (c *Client) RecordSends(ctx context.Context, businessID string, entries []RecordEntry, campaignID, subject string) *RecordOutcome {
	var out struct {
		Success    bool   `json:"success"`
		Recorded   int    `json:"recorded"`
		CampaignID string `json:"campaignId"`
	}
	err := c.post(ctx, "/record-sends", map[string]any{
		"businessId":   businessID,
		"emails":       entries,
		"campaignId":   campaignID,
		"emailSubject": subject,
	}, &out)
	if err != nil {
		c.log.Error("record sends failed, send state not persisted",
			"businessId", businessID, "count", len(entries), "error", err)
		return &RecordOutcome{Success: false, Recorded: 0}
	}
	return &RecordOutcome{Success: out.Success, Recorded: out.Recorded, CampaignID: out.CampaignID}
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tracking API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
