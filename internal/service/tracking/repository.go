package tracking

import (
	"context"
	"time"

	"github.com/ignite/send-tracker/internal/domain"
)

// Repository defines the data access contract for send tracking.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ExistingKeys returns the subset of the given normalized keys that
	// already have a send entry for the business. An unknown business
	// yields an empty set, not an error.
	ExistingKeys(ctx context.Context, businessID string, keys []string) (map[string]bool, error)

	// GetEntry returns the send state for one normalized key.
	// Returns ErrNotFound if the address has never been recorded.
	GetEntry(ctx context.Context, businessID, key string) (*domain.EmailEntry, error)

	// RecordBatch upserts send state for every recipient in one atomic
	// operation: firstSent is set only on insert, lastSent/lastStatus are
	// overwritten, and sendCount plus the business-level totalSends are
	// incremented in-store (never read-modify-write from the caller).
	RecordBatch(ctx context.Context, businessID string, recipients []domain.Recipient, now time.Time) error

	// AppendCampaign inserts one immutable campaign history entry.
	AppendCampaign(ctx context.Context, c *domain.Campaign) error

	// History returns campaigns ordered by sentAt descending, plus the
	// total campaign count for the business.
	History(ctx context.Context, businessID string, limit, skip int) ([]domain.Campaign, int, error)

	// Totals returns the aggregate counters for a business. An unknown
	// business yields zeroes and a nil lastUpdated.
	Totals(ctx context.Context, businessID string) (Totals, error)

	// Reset deletes the business's tracking record and all per-address
	// send state. Campaign history is left untouched.
	Reset(ctx context.Context, businessID string) error
}

// Totals holds the aggregate counters kept per business.
type Totals struct {
	UniqueEmails int
	TotalSends   int
	LastUpdated  *time.Time
}

// SentKeyCache is an optional fast path in front of the repository for
// duplicate checks. Implementations are best-effort: errors are tolerated
// and membership misses simply fall through to the repository.
type SentKeyCache interface {
	// Contains reports which of the keys are known-sent for the business.
	Contains(ctx context.Context, businessID string, keys []string) (map[string]bool, error)

	// Add marks keys as sent for the business.
	Add(ctx context.Context, businessID string, keys []string) error

	// Invalidate drops all cached keys for the business.
	Invalidate(ctx context.Context, businessID string) error
}
