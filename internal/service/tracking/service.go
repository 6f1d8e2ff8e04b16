package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/send-tracker/internal/domain"
	"github.com/ignite/send-tracker/internal/pkg/logger"
)

// ResetConfirmation is the sentinel a caller must supply before a reset is
// executed. Anything else fails with ErrConfirmationRequired.
const ResetConfirmation = "yes"

const defaultHistoryLimit = 10

// Service implements send-tracking business logic. It is safe for
// concurrent use; correctness under concurrent RecordSends calls relies on
// the repository's atomic increments, not on in-process locks.
type Service struct {
	repo  Repository
	cache SentKeyCache // optional, may be nil
	log   *logger.Logger
}

// NewService creates a tracking service backed by the given repository.
// cache may be nil to disable the fast-path lookup.
func NewService(repo Repository, cache SentKeyCache) *Service {
	return &Service{repo: repo, cache: cache, log: logger.Named("tracking")}
}

// DedupStats summarizes one duplicate check. Checked counts raw inputs
// including duplicates, so AlreadySent+New == Checked unless malformed
// entries were skipped.
type DedupStats struct {
	Checked     int `json:"checked"`
	AlreadySent int `json:"alreadySent"`
	New         int `json:"new"`
}

// DedupResult partitions a candidate list into already-sent and new
// addresses. Both slices hold normalized addresses in input order, one
// element per raw input.
type DedupResult struct {
	AlreadySent []string   `json:"alreadySent"`
	NewEmails   []string   `json:"newEmails"`
	Stats       DedupStats `json:"stats"`
}

// CheckDuplicates classifies each candidate address as already-sent or new
// for the business. Read-only. An unknown business is treated as having
// never sent anything, so every input classifies as new.
func (s *Service) CheckDuplicates(ctx context.Context, businessID string, emails []string) (*DedupResult, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: businessId is required", ErrInvalidArgument)
	}

	result := &DedupResult{
		AlreadySent: []string{},
		NewEmails:   []string{},
	}
	result.Stats.Checked = len(emails)
	if len(emails) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, raw := range emails {
		key := Normalize(raw)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	sent := s.cachedKeys(ctx, businessID, keys)

	// Cache hits are authoritative; only the misses need a storage read.
	var misses []string
	for _, k := range keys {
		if !sent[k] {
			misses = append(misses, k)
		}
	}
	if len(misses) > 0 {
		existing, err := s.repo.ExistingKeys(ctx, businessID, misses)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		for k := range existing {
			sent[k] = true
		}
	}

	// Classify per raw input so duplicates in the request are counted
	// individually, matching Stats.Checked.
	for _, raw := range emails {
		key := Normalize(raw)
		if key == "" {
			continue
		}
		if sent[key] {
			result.AlreadySent = append(result.AlreadySent, key)
			result.Stats.AlreadySent++
		} else {
			result.NewEmails = append(result.NewEmails, key)
			result.Stats.New++
		}
	}
	return result, nil
}

// RecordResult reports the outcome of a RecordSends call.
type RecordResult struct {
	Recorded   int    `json:"recorded"`
	CampaignID string `json:"campaignId"`
}

// RecordSends persists the outcome of a batch send: one atomic counter
// upsert per recipient, then one immutable campaign history entry.
//
// The counter phase is all-or-nothing. The history append is best-effort:
// counters are the source of truth for duplicate checking, so a failed
// audit write is logged and the call still succeeds.
func (s *Service) RecordSends(ctx context.Context, businessID string, recipients []domain.Recipient, campaignID, subject string) (*RecordResult, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: businessId is required", ErrInvalidArgument)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: emails array is required and must not be empty", ErrInvalidArgument)
	}

	// Normalize up front; entries without an address are skipped rather
	// than failing the whole batch.
	valid := make([]domain.Recipient, 0, len(recipients))
	for _, r := range recipients {
		r.Email = Normalize(r.Email)
		if r.Email == "" {
			continue
		}
		if r.Status == "" {
			r.Status = domain.StatusSent
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no entry contains an email address", ErrInvalidArgument)
	}

	if campaignID == "" {
		campaignID = "campaign_" + uuid.NewString()
	}
	if subject == "" {
		subject = "(no subject)"
	}

	now := time.Now().UTC()
	if err := s.repo.RecordBatch(ctx, businessID, valid, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}

	stats := domain.CampaignStats{Total: len(valid)}
	for _, r := range valid {
		switch r.Status {
		case domain.StatusSent:
			stats.Sent++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	campaign := &domain.Campaign{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		CampaignID: campaignID,
		Subject:    subject,
		SentAt:     now,
		Recipients: valid,
		Stats:      stats,
	}
	if err := s.repo.AppendCampaign(ctx, campaign); err != nil {
		// Counters already committed; losing an audit entry beats
		// rolling back dedup state.
		s.log.Warn("campaign history append failed",
			"businessId", businessID, "campaignId", campaignID, "error", err)
	}

	if s.cache != nil {
		keys := make([]string, len(valid))
		for i, r := range valid {
			keys[i] = r.Email
		}
		if err := s.cache.Add(ctx, businessID, keys); err != nil {
			s.log.Debug("sent-key cache add failed", "businessId", businessID, "error", err)
		}
	}

	return &RecordResult{Recorded: len(valid), CampaignID: campaignID}, nil
}

// Pagination is the metadata returned alongside a history page.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Skip    int  `json:"skip"`
	HasMore bool `json:"hasMore"`
}

// HistoryResult is one page of campaign history, newest first.
type HistoryResult struct {
	Campaigns  []domain.Campaign `json:"campaigns"`
	Pagination Pagination        `json:"pagination"`
}

// GetHistory returns a business's campaigns sorted by sentAt descending.
func (s *Service) GetHistory(ctx context.Context, businessID string, limit, skip int) (*HistoryResult, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: businessId is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if skip < 0 {
		skip = 0
	}

	campaigns, total, err := s.repo.History(ctx, businessID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	return &HistoryResult{
		Campaigns: campaigns,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Skip:    skip,
			HasMore: skip+len(campaigns) < total,
		},
	}, nil
}

// CheckResult is the answer to a single-address lookup.
type CheckResult struct {
	Sent    bool               `json:"sent"`
	Details *domain.EmailEntry `json:"details,omitempty"`
}

// CheckOne reports whether a single address has ever been recorded for the
// business, with its send state when it has.
func (s *Service) CheckOne(ctx context.Context, businessID, email string) (*CheckResult, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: businessId is required", ErrInvalidArgument)
	}
	key := Normalize(email)
	if key == "" {
		return &CheckResult{Sent: false}, nil
	}

	entry, err := s.repo.GetEntry(ctx, businessID, key)
	if errors.Is(err, ErrNotFound) {
		return &CheckResult{Sent: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &CheckResult{Sent: true, Details: entry}, nil
}

// StatsResult aggregates a business's tracking state for dashboards.
// UniqueEmailsSent is the cardinality of the address set, not TotalSends.
type StatsResult struct {
	UniqueEmailsSent int               `json:"uniqueEmailsSent"`
	TotalSends       int               `json:"totalSends"`
	CampaignCount    int               `json:"campaignCount"`
	RecentCampaigns  []domain.Campaign `json:"recentCampaigns"`
	LastUpdated      *time.Time        `json:"lastUpdated"`
}

// GetStats returns aggregate counters and the five most recent campaigns.
func (s *Service) GetStats(ctx context.Context, businessID string) (*StatsResult, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: businessId is required", ErrInvalidArgument)
	}

	totals, err := s.repo.Totals(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	recent, total, err := s.repo.History(ctx, businessID, 5, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if recent == nil {
		recent = []domain.Campaign{}
	}
	return &StatsResult{
		UniqueEmailsSent: totals.UniqueEmails,
		TotalSends:       totals.TotalSends,
		CampaignCount:    total,
		RecentCampaigns:  recent,
		LastUpdated:      totals.LastUpdated,
	}, nil
}

// Reset destroys all tracking state for a business. It requires the
// explicit confirmation sentinel and deliberately leaves campaign history
// intact: after a reset, past campaigns still show in history while their
// recipients classify as new again. That asymmetry is a product decision
// carried over from the original dashboard.
func (s *Service) Reset(ctx context.Context, businessID, confirm string) error {
	if businessID == "" {
		return fmt.Errorf("%w: businessId is required", ErrInvalidArgument)
	}
	if confirm != ResetConfirmation {
		return fmt.Errorf("%w: pass confirm=%s to delete all tracking data", ErrConfirmationRequired, ResetConfirmation)
	}

	if err := s.repo.Reset(ctx, businessID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, businessID); err != nil {
			s.log.Debug("sent-key cache invalidate failed", "businessId", businessID, "error", err)
		}
	}
	s.log.Info("tracking record reset", "businessId", businessID)
	return nil
}

// cachedKeys asks the optional cache which keys are known-sent. Cache
// failures degrade silently to an empty set; the repository remains the
// source of truth.
func (s *Service) cachedKeys(ctx context.Context, businessID string, keys []string) map[string]bool {
	if s.cache == nil || len(keys) == 0 {
		return make(map[string]bool, len(keys))
	}
	hits, err := s.cache.Contains(ctx, businessID, keys)
	if err != nil || hits == nil {
		if err != nil {
			s.log.Debug("sent-key cache lookup failed", "businessId", businessID, "error", err)
		}
		return make(map[string]bool, len(keys))
	}
	return hits
}
