package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/xlink/internal/linkage"
	"github.com/sells-group/xlink/internal/store"
)

type handlers struct {
	store     store.Store
	startedAt time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

// linkResponse mirrors the outbound link table columns.
type linkResponse struct {
	SourceIdentifier string `json:"source_identifier"`
	Ticker           string `json:"ticker"`
	TargetID         string `json:"target_id"`
	CompanyName      string `json:"company_name"`
	TargetName       string `json:"target_name"`
	NameSimilarity   int    `json:"name_similarity"`
	Score            int    `json:"score"`
	Stage            string `json:"stage"`
}

type linksResponse struct {
	RunID string         `json:"run_id"`
	Count int            `json:"count"`
	Links []linkResponse `json:"links"`
}

func newLinkResponse(l linkage.Link) linkResponse {
	return linkResponse{
		SourceIdentifier: l.SourceIdentifier,
		Ticker:           l.Ticker,
		TargetID:         l.TargetID(),
		CompanyName:      l.CompanyName,
		TargetName:       l.TargetName,
		NameSimilarity:   l.NameSimilarity,
		Score:            l.Score,
		Stage:            string(l.Stage),
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := paging(q.Get("limit"), q.Get("offset"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	filter := store.RunFilter{
		Status:  store.RunStatus(q.Get("status")),
		Command: q.Get("command"),
		Limit:   limit,
		Offset:  offset,
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			badRequest(w, r, eris.Errorf("since must be RFC3339, got %q", s))
			return
		}
		filter.CreatedAfter = since
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	render.JSON(w, r, runs)
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, run)
}

func (h *handlers) listLinks(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, offset, err := paging(q.Get("limit"), q.Get("offset"))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	filter := store.LinkFilter{Company: q.Get("company"), Limit: limit, Offset: offset}

	if s := q.Get("target"); s != "" {
		permno, err := strconv.ParseInt(s, 10, 64)
		if err != nil || permno <= 0 {
			badRequest(w, r, eris.Errorf("target must be a positive integer, got %q", s))
			return
		}
		filter.PermNo = permno
	}
	if s := q.Get("max_score"); s != "" {
		score, err := strconv.Atoi(s)
		if err != nil || score < 0 || score > 6 {
			badRequest(w, r, eris.Errorf("max_score must be between 0 and 6, got %q", s))
			return
		}
		filter.MaxScore = &score
	}

	links, err := h.store.ListLinks(r.Context(), run.ID, filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := linksResponse{RunID: run.ID, Count: len(links), Links: make([]linkResponse, len(links))}
	for i, l := range links {
		resp.Links[i] = newLinkResponse(l)
	}
	render.JSON(w, r, resp)
}

func (h *handlers) listUnmatched(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	names, err := h.store.ListUnmatched(r.Context(), run.ID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	render.JSON(w, r, map[string]any{"run_id": run.ID, "count": len(names), "unmatched": names})
}

// run loads the run named by the {id} URL parameter, writing a 404 when it
// does not exist.
func (h *handlers) run(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "run " + id + " not found"})
		return nil, false
	}
	if err != nil {
		h.internalError(w, r, err)
		return nil, false
	}
	return run, true
}

func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Error: "internal error"})
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

func paging(limitStr, offsetStr string) (limit, offset int, err error) {
	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 || limit > 10000 {
			return 0, 0, eris.Errorf("limit must be between 0 and 10000, got %q", limitStr)
		}
	}
	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, eris.Errorf("offset must be a non-negative integer, got %q", offsetStr)
		}
	}
	return limit, offset, nil
}
