package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/job-change-tracker/internal/db"
)

// maxListLimit caps ?limit= on list endpoints.
const maxListLimit = 500

// defaultTrendDays is the window used when a trend request omits start.
const defaultTrendDays = 30

var validate = validator.New()

// AckRequest is the body of POST /changes/ack
type AckRequest struct {
	IDs []int64 `json:"ids" validate:"omitempty,max=1000,dive,gt=0"`
	All bool    `json:"all"`
}

// AckResponse reports how many changes were acknowledged
type AckResponse struct {
	Acknowledged int64 `json:"acknowledged"`
}

// TrendResponse wraps trend rows with the window they cover
type TrendResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Data  any    `json:"data"`
}

// handleHealth reports whether the database is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": err.Error(),
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRecentChanges lists unacknowledged changes, newest first
func (s *Server) handleRecentChanges(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.failure(w, "recent changes", err)
		return
	}

	changes, err := s.store.RecentChanges(r.Context(), limit)
	if err != nil {
		s.failure(w, "recent changes", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, changes)
}

// handleAcknowledge flips is_new for the given ids, or for every change when all is set
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req AckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.All == (len(req.IDs) > 0) {
		s.failure(w, "acknowledge", &ErrValidation{Field: "ids", Message: "provide either ids or all"})
		return
	}

	var n int64
	var err error
	if req.All {
		n, err = s.store.AcknowledgeAll(r.Context())
	} else {
		n, err = s.store.AcknowledgeChanges(r.Context(), req.IDs)
	}
	if err != nil {
		s.failure(w, "acknowledge", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, AckResponse{Acknowledged: n})
}

// handleListCompanies lists tracked companies; ?include_inactive=true adds inactive ones
func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	includeInactive := false
	if v := r.URL.Query().Get("include_inactive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.failure(w, "list companies", &ErrValidation{Field: "include_inactive", Message: "must be a boolean"})
			return
		}
		includeInactive = b
	}

	companies, err := s.store.ListCompanies(r.Context(), includeInactive)
	if err != nil {
		s.failure(w, "list companies", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, companies)
}

// handleCompanyStats returns per-company totals for active companies
func (s *Server) handleCompanyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CompanyStats(r.Context())
	if err != nil {
		s.failure(w, "company stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// handleTrends returns per-company counts in an inclusive date window
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.parseWindow(r)
	if err != nil {
		s.failure(w, "trends", err)
		return
	}

	rows, err := s.store.TrendByDateRange(r.Context(), start, end)
	if err != nil {
		s.failure(w, "trends", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, TrendResponse{
		Start: start.Format(time.DateOnly),
		End:   end.Format(time.DateOnly),
		Data:  rows,
	})
}

// handleCompanyTrend returns daily counts for one company
func (s *Server) handleCompanyTrend(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	start, end, err := s.parseWindow(r)
	if err != nil {
		s.failure(w, "company trend", err)
		return
	}

	company, err := s.store.GetCompanyByName(r.Context(), name)
	if err != nil {
		s.failure(w, "company trend", err)
		return
	}
	if company == nil {
		s.failure(w, "company trend", &ErrNotFound{Resource: "company", Key: name})
		return
	}

	rows, err := s.store.CompanyTrend(r.Context(), company.Name, start, end)
	if err != nil {
		s.failure(w, "company trend", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, TrendResponse{
		Start: start.Format(time.DateOnly),
		End:   end.Format(time.DateOnly),
		Data:  rows,
	})
}

// handleListScrapeRuns lists scrape runs, newest first
func (s *Server) handleListScrapeRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.failure(w, "scrape runs", err)
		return
	}

	runs, err := s.store.ListScrapeRuns(r.Context(), limit)
	if err != nil {
		s.failure(w, "scrape runs", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, runs)
}

// parseLimit reads ?limit=. Zero means the store default.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 1 || limit > maxListLimit {
		return 0, &ErrValidation{Field: "limit", Message: "must be an integer between 1 and " + strconv.Itoa(maxListLimit)}
	}
	return limit, nil
}

// parseWindow reads ?start= and ?end= as YYYY-MM-DD. end defaults to today and start to
// defaultTrendDays before end.
func (s *Server) parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return time.Time{}, time.Time{}, &ErrValidation{Field: "end", Message: "must be YYYY-MM-DD"}
		}
		end = t
	}

	start := end.AddDate(0, 0, -defaultTrendDays)
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return time.Time{}, time.Time{}, &ErrValidation{Field: "start", Message: "must be YYYY-MM-DD"}
		}
		start = t
	}

	if err := db.ValidateRange(start, end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
