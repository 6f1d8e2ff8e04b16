package tracking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ignite/send-tracker/internal/domain"
)

// mockRepo is an in-memory repository for testing. It maintains the same
// counter invariants as the Postgres implementation.
type mockRepo struct {
	mu         sync.RWMutex
	entries    map[string]map[string]*domain.EmailEntry // businessID -> key -> entry
	totals     map[string]int                           // businessID -> totalSends
	updated    map[string]time.Time
	campaigns  map[string][]domain.Campaign
	failAppend error // when set, AppendCampaign fails with this error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		entries:   make(map[string]map[string]*domain.EmailEntry),
		totals:    make(map[string]int),
		updated:   make(map[string]time.Time),
		campaigns: make(map[string][]domain.Campaign),
	}
}

func (m *mockRepo) ExistingKeys(_ context.Context, businessID string, keys []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool)
	for _, k := range keys {
		if _, ok := m.entries[businessID][k]; ok {
			out[k] = true
		}
	}
	return out, nil
}

func (m *mockRepo) GetEntry(_ context.Context, businessID, key string) (*domain.EmailEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[businessID][key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) RecordBatch(_ context.Context, businessID string, recipients []domain.Recipient, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[businessID] == nil {
		m.entries[businessID] = make(map[string]*domain.EmailEntry)
	}
	for _, r := range recipients {
		e, ok := m.entries[businessID][r.Email]
		if !ok {
			e = &domain.EmailEntry{Email: r.Email, FirstSent: now}
			m.entries[businessID][r.Email] = e
		}
		e.LastSent = now
		e.LastStatus = r.Status
		e.SendCount++
		m.totals[businessID]++
	}
	m.updated[businessID] = now
	return nil
}

func (m *mockRepo) AppendCampaign(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	m.campaigns[c.BusinessID] = append(m.campaigns[c.BusinessID], *c)
	return nil
}

func (m *mockRepo) History(_ context.Context, businessID string, limit, skip int) ([]domain.Campaign, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := append([]domain.Campaign(nil), m.campaigns[businessID]...)
	sort.Slice(all, func(i, j int) bool { return all[i].SentAt.After(all[j].SentAt) })
	total := len(all)
	if skip >= total {
		return nil, total, nil
	}
	all = all[skip:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockRepo) Totals(_ context.Context, businessID string) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := Totals{
		UniqueEmails: len(m.entries[businessID]),
		TotalSends:   m.totals[businessID],
	}
	if u, ok := m.updated[businessID]; ok {
		t.LastUpdated = &u
	}
	return t, nil
}

func (m *mockRepo) Reset(_ context.Context, businessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, businessID)
	delete(m.totals, businessID)
	delete(m.updated, businessID)
	return nil
}

// sumSendCounts verifies the counter invariant against the raw entries.
func (m *mockRepo) sumSendCounts(businessID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := 0
	for _, e := range m.entries[businessID] {
		sum += e.SendCount
	}
	return sum
}

const testBusinessID = "biz-001"

func recips(emails ...string) []domain.Recipient {
	out := make([]domain.Recipient, len(emails))
	for i, e := range emails {
		out[i] = domain.Recipient{Email: e}
	}
	return out
}

func TestCheckDuplicates_UnknownBusinessAllNew(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	res, err := svc.CheckDuplicates(ctx, "unknown-business", []string{"a@b.com"})
	if err != nil {
		t.Fatalf("CheckDuplicates: %v", err)
	}
	if len(res.AlreadySent) != 0 {
		t.Errorf("expected no already-sent, got %v", res.AlreadySent)
	}
	if len(res.NewEmails) != 1 || res.NewEmails[0] != "a@b.com" {
		t.Errorf("expected newEmails [a@b.com], got %v", res.NewEmails)
	}
	if res.Stats != (DedupStats{Checked: 1, AlreadySent: 0, New: 1}) {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
}

func TestCheckDuplicates_AfterRecord(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	if _, err := svc.RecordSends(ctx, testBusinessID, recips(" User@EXAMPLE.com "), "", ""); err != nil {
		t.Fatalf("RecordSends: %v", err)
	}

	res, err := svc.CheckDuplicates(ctx, testBusinessID, []string{"user@example.com"})
	if err != nil {
		t.Fatalf("CheckDuplicates: %v", err)
	}
	if len(res.AlreadySent) != 1 || res.AlreadySent[0] != "user@example.com" {
		t.Errorf("expected normalized already-sent form, got %v", res.AlreadySent)
	}
}

func TestCheckDuplicates_InputDuplicatesCountedIndividually(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	res, err := svc.CheckDuplicates(ctx, testBusinessID, []string{"x@y.com", "x@y.com"})
	if err != nil {
		t.Fatalf("CheckDuplicates: %v", err)
	}
	if res.Stats != (DedupStats{Checked: 2, AlreadySent: 0, New: 2}) {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
}

func TestCheckDuplicates_EmptyInput(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	res, err := svc.CheckDuplicates(context.Background(), testBusinessID, nil)
	if err != nil {
		t.Fatalf("CheckDuplicates: %v", err)
	}
	if res.Stats.Checked != 0 || len(res.AlreadySent) != 0 || len(res.NewEmails) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestCheckDuplicates_MissingBusinessID(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	_, err := svc.CheckDuplicates(context.Background(), "", []string{"a@b.com"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRecordSends_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	if _, err := svc.RecordSends(ctx, "", recips("a@b.com"), "", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("missing businessId: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.RecordSends(ctx, testBusinessID, nil, "", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty emails: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.RecordSends(ctx, testBusinessID, recips("", "  "), "", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("only blank emails: expected ErrInvalidArgument, got %v", err)
	}
}

func TestRecordSends_FirstSentImmutable(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if _, err := svc.RecordSends(ctx, testBusinessID, recips("x@y.com"), "", ""); err != nil {
		t.Fatalf("first RecordSends: %v", err)
	}
	first, err := repo.GetEntry(ctx, testBusinessID, "x@y.com")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	if _, err := svc.RecordSends(ctx, testBusinessID, recips("x@y.com"), "", ""); err != nil {
		t.Fatalf("second RecordSends: %v", err)
	}
	second, _ := repo.GetEntry(ctx, testBusinessID, "x@y.com")

	if !second.FirstSent.Equal(first.FirstSent) {
		t.Errorf("firstSent changed: %v -> %v", first.FirstSent, second.FirstSent)
	}
	if !second.LastSent.After(first.LastSent) {
		t.Errorf("lastSent not advanced: %v -> %v", first.LastSent, second.LastSent)
	}
	if second.SendCount != 2 {
		t.Errorf("expected sendCount 2, got %d", second.SendCount)
	}
}

func TestRecordSends_CounterInvariant(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	batches := [][]string{
		{"a@x.com", "b@x.com"},
		{"a@x.com"},
		{"c@x.com", "a@x.com", "b@x.com"},
	}
	for _, b := range batches {
		if _, err := svc.RecordSends(ctx, testBusinessID, recips(b...), "", ""); err != nil {
			t.Fatalf("RecordSends(%v): %v", b, err)
		}
	}

	stats, err := svc.GetStats(ctx, testBusinessID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalSends != repo.sumSendCounts(testBusinessID) {
		t.Errorf("totalSends %d != sum of sendCounts %d", stats.TotalSends, repo.sumSendCounts(testBusinessID))
	}
	if stats.TotalSends != 6 {
		t.Errorf("expected totalSends 6, got %d", stats.TotalSends)
	}
	if stats.UniqueEmailsSent != 3 {
		t.Errorf("expected 3 unique emails, got %d", stats.UniqueEmailsSent)
	}
}

func TestRecordSends_DefaultsAndGeneratedCampaignID(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	res, err := svc.RecordSends(ctx, testBusinessID, recips("a@b.com"), "", "")
	if err != nil {
		t.Fatalf("RecordSends: %v", err)
	}
	if res.Recorded != 1 {
		t.Errorf("expected recorded 1, got %d", res.Recorded)
	}
	if res.CampaignID == "" || res.CampaignID[:9] != "campaign_" {
		t.Errorf("expected generated campaign_ id, got %q", res.CampaignID)
	}

	res2, _ := svc.RecordSends(ctx, testBusinessID, recips("a@b.com"), "", "")
	if res2.CampaignID == res.CampaignID {
		t.Error("generated campaign ids must not collide")
	}

	hist, _ := svc.GetHistory(ctx, testBusinessID, 10, 0)
	if hist.Campaigns[0].Subject != "(no subject)" {
		t.Errorf("expected placeholder subject, got %q", hist.Campaigns[0].Subject)
	}
}

func TestRecordSends_SkipsBlankEntries(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	res, err := svc.RecordSends(context.Background(), testBusinessID,
		[]domain.Recipient{{Email: "a@b.com"}, {Email: ""}, {Email: "c@d.com", Status: domain.StatusFailed}}, "camp-1", "Hello")
	if err != nil {
		t.Fatalf("RecordSends: %v", err)
	}
	if res.Recorded != 2 {
		t.Errorf("expected 2 recorded (blank skipped), got %d", res.Recorded)
	}
}

func TestRecordSends_CampaignStats(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordSends(ctx, testBusinessID, []domain.Recipient{
		{Email: "a@x.com"},
		{Email: "b@x.com", Status: domain.StatusFailed},
		{Email: "c@x.com", Status: "deferred"},
	}, "camp-9", "Promo")
	if err != nil {
		t.Fatalf("RecordSends: %v", err)
	}

	hist, _ := svc.GetHistory(ctx, testBusinessID, 10, 0)
	got := hist.Campaigns[0].Stats
	want := domain.CampaignStats{Total: 3, Sent: 1, Failed: 1}
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestRecordSends_HistoryAppendFailureStillSucceeds(t *testing.T) {
	repo := newMockRepo()
	repo.failAppend = errors.New("campaigns table unavailable")
	svc := NewService(repo, nil)
	ctx := context.Background()

	res, err := svc.RecordSends(ctx, testBusinessID, recips("a@b.com", "c@d.com"), "camp-1", "Hello")
	if err != nil {
		t.Fatalf("RecordSends must succeed when only the history append fails: %v", err)
	}
	if res.Recorded != 2 || res.CampaignID != "camp-1" {
		t.Errorf("unexpected result: %+v", res)
	}

	// Counters committed: both addresses now classify as already-sent.
	dedup, err := svc.CheckDuplicates(ctx, testBusinessID, []string{"a@b.com", "c@d.com"})
	if err != nil {
		t.Fatalf("CheckDuplicates: %v", err)
	}
	if len(dedup.AlreadySent) != 2 {
		t.Errorf("expected counters recorded despite append failure, got %v", dedup.AlreadySent)
	}

	// The audit entry is the only casualty.
	hist, err := svc.GetHistory(ctx, testBusinessID, 10, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if hist.Pagination.Total != 0 {
		t.Errorf("expected no history entry, got %d", hist.Pagination.Total)
	}
}

func TestGetHistory_Pagination(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 15; i++ {
		repo.AppendCampaign(ctx, &domain.Campaign{
			ID:         "h-" + string(rune('a'+i)),
			BusinessID: testBusinessID,
			CampaignID: "c",
			SentAt:     base.Add(time.Duration(i) * time.Minute),
		})
	}

	page1, err := svc.GetHistory(ctx, testBusinessID, 10, 0)
	if err != nil {
		t.Fatalf("GetHistory page1: %v", err)
	}
	if len(page1.Campaigns) != 10 || !page1.Pagination.HasMore {
		t.Errorf("page1: got %d campaigns, hasMore=%v", len(page1.Campaigns), page1.Pagination.HasMore)
	}
	if page1.Pagination.Total != 15 {
		t.Errorf("expected total 15, got %d", page1.Pagination.Total)
	}

	page2, err := svc.GetHistory(ctx, testBusinessID, 10, 10)
	if err != nil {
		t.Fatalf("GetHistory page2: %v", err)
	}
	if len(page2.Campaigns) != 5 || page2.Pagination.HasMore {
		t.Errorf("page2: got %d campaigns, hasMore=%v", len(page2.Campaigns), page2.Pagination.HasMore)
	}

	// Newest first.
	if !page1.Campaigns[0].SentAt.After(page1.Campaigns[9].SentAt) {
		t.Error("history not sorted by sentAt descending")
	}
}

func TestCheckOne(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	res, err := svc.CheckOne(ctx, testBusinessID, "nobody@x.com")
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if res.Sent {
		t.Error("expected sent=false for unknown address")
	}

	svc.RecordSends(ctx, testBusinessID, recips("Somebody@X.com"), "", "")
	res, err = svc.CheckOne(ctx, testBusinessID, " somebody@x.com ")
	if err != nil {
		t.Fatalf("CheckOne: %v", err)
	}
	if !res.Sent || res.Details == nil || res.Details.SendCount != 1 {
		t.Errorf("expected sent=true with details, got %+v", res)
	}
}

func TestReset_RequiresConfirmation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	svc.RecordSends(ctx, testBusinessID, recips("keep@x.com"), "", "")

	if err := svc.Reset(ctx, testBusinessID, ""); !errors.Is(err, ErrConfirmationRequired) {
		t.Errorf("expected ErrConfirmationRequired, got %v", err)
	}
	res, _ := svc.CheckDuplicates(ctx, testBusinessID, []string{"keep@x.com"})
	if len(res.AlreadySent) != 1 {
		t.Error("unconfirmed reset must not mutate the record")
	}

	if err := svc.Reset(ctx, testBusinessID, ResetConfirmation); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	res, _ = svc.CheckDuplicates(ctx, testBusinessID, []string{"keep@x.com"})
	if len(res.NewEmails) != 1 {
		t.Error("previously sent address must classify as new after reset")
	}
}

func TestReset_LeavesHistoryIntact(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	svc.RecordSends(ctx, testBusinessID, recips("gone@x.com"), "camp-1", "Bye")
	if err := svc.Reset(ctx, testBusinessID, ResetConfirmation); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	hist, err := svc.GetHistory(ctx, testBusinessID, 10, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if hist.Pagination.Total != 1 {
		t.Errorf("expected history to survive reset, got total %d", hist.Pagination.Total)
	}
}

func TestEndToEndScenario(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	res, err := svc.RecordSends(ctx, "biz1", recips("a@x.com", "b@x.com"), "", "Hello")
	if err != nil {
		t.Fatalf("RecordSends: %v", err)
	}
	if res.Recorded != 2 {
		t.Errorf("expected recorded 2, got %d", res.Recorded)
	}

	stats, err := svc.GetStats(ctx, "biz1")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.UniqueEmailsSent != 2 || stats.TotalSends != 2 || stats.CampaignCount != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.RecentCampaigns) != 1 || stats.RecentCampaigns[0].Subject != "Hello" {
		t.Errorf("unexpected recent campaigns: %+v", stats.RecentCampaigns)
	}

	dedup, err := svc.CheckDuplicates(ctx, "biz1", []string{"a@x.com", "c@x.com"})
	if err != nil {
		t.Fatalf("CheckDuplicates: %v", err)
	}
	if len(dedup.AlreadySent) != 1 || dedup.AlreadySent[0] != "a@x.com" {
		t.Errorf("expected alreadySent [a@x.com], got %v", dedup.AlreadySent)
	}
	if len(dedup.NewEmails) != 1 || dedup.NewEmails[0] != "c@x.com" {
		t.Errorf("expected newEmails [c@x.com], got %v", dedup.NewEmails)
	}
}
