package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/send-tracker/internal/domain"
	"github.com/ignite/send-tracker/internal/pkg/httputil"
	"github.com/ignite/send-tracker/internal/service/tracking"
)

// TrackingAPI exposes the send-tracking service via REST endpoints. The
// bulk-send workflow calls check-duplicates before a campaign and
// record-sends after; the dashboard reads history, check, and stats.
type TrackingAPI struct {
	svc *tracking.Service
}

func NewTrackingAPI(svc *tracking.Service) *TrackingAPI {
	return &TrackingAPI{svc: svc}
}

func (api *TrackingAPI) RegisterRoutes(r chi.Router) {
	r.Post("/check-duplicates", api.HandleCheckDuplicates)
	r.Post("/record-sends", api.HandleRecordSends)
	r.Get("/history/{businessID}", api.HandleHistory)
	r.Get("/check/{businessID}/{email}", api.HandleCheckOne)
	r.Get("/stats/{businessID}", api.HandleStats)
	r.Delete("/reset/{businessID}", api.HandleReset)
}

// writeServiceError maps service-layer sentinels onto the HTTP error
// taxonomy: invalid input and missing confirmation are 400s, storage
// failures are 500s with a machine-checkable code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracking.ErrInvalidArgument):
		httputil.BadRequest(w, httputil.CodeInvalidArgument, err.Error())
	case errors.Is(err, tracking.ErrConfirmationRequired):
		httputil.BadRequest(w, httputil.CodeConfirmationRequired, err.Error())
	case errors.Is(err, tracking.ErrStorageWriteFailed):
		httputil.StorageError(w, httputil.CodeStorageWriteFailed, err)
	default:
		httputil.StorageError(w, httputil.CodeStorageUnavailable, err)
	}
}

// HandleCheckDuplicates partitions a candidate list into already-sent and
// new addresses for a business. Read-only.
func (api *TrackingAPI) HandleCheckDuplicates(w http.ResponseWriter, r *http.Request) {
	var input struct {
		BusinessID string   `json:"businessId"`
		Emails     []string `json:"emails"`
	}
	if !httputil.Decode(w, r, &input) {
		return
	}
	if input.Emails == nil {
		httputil.BadRequest(w, httputil.CodeInvalidArgument, "emails array is required")
		return
	}

	result, err := api.svc.CheckDuplicates(r.Context(), input.BusinessID, input.Emails)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// recordEmail is one recipient in a record-sends request. MailgunID is the
// field name the legacy callers send for the provider message id.
type recordEmail struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	MailgunID string `json:"mailgunId"`
}

// HandleRecordSends persists the outcome of a completed batch send.
func (api *TrackingAPI) HandleRecordSends(w http.ResponseWriter, r *http.Request) {
	var input struct {
		BusinessID   string        `json:"businessId"`
		Emails       []recordEmail `json:"emails"`
		CampaignID   string        `json:"campaignId"`
		EmailSubject string        `json:"emailSubject"`
	}
	if !httputil.Decode(w, r, &input) {
		return
	}

	recipients := make([]domain.Recipient, len(input.Emails))
	for i, e := range input.Emails {
		recipients[i] = domain.Recipient{
			Email:             e.Email,
			Name:              e.Name,
			Status:            e.Status,
			ProviderMessageID: e.MailgunID,
		}
	}

	result, err := api.svc.RecordSends(r.Context(), input.BusinessID, recipients, input.CampaignID, input.EmailSubject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"success":    true,
		"recorded":   result.Recorded,
		"campaignId": result.CampaignID,
	})
}

// HandleHistory returns one page of campaign history, newest first.
func (api *TrackingAPI) HandleHistory(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

	result, err := api.svc.GetHistory(r.Context(), businessID, limit, skip)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandleCheckOne reports whether a single address was ever recorded.
func (api *TrackingAPI) HandleCheckOne(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	email := chi.URLParam(r, "email")

	result, err := api.svc.CheckOne(r.Context(), businessID, email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandleStats returns aggregate tracking counters for the dashboard.
func (api *TrackingAPI) HandleStats(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")

	result, err := api.svc.GetStats(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandleReset destroys all tracking state for a business. Requires
// ?confirm=yes; campaign history survives.
func (api *TrackingAPI) HandleReset(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	confirm := r.URL.Query().Get("confirm")

	if err := api.svc.Reset(r.Context(), businessID, confirm); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"success":    true,
		"message":    "email tracking data reset",
		"businessId": businessID,
	})
}
