package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"marketwatch/internal/analysis"
	"marketwatch/internal/config"
	"marketwatch/internal/history"
	"marketwatch/internal/metrics"
	"marketwatch/internal/ranking"
)

// Controller is the capture-pipeline surface the ops endpoints drive.
type Controller interface {
	StartCapture() error
	StopCapture() error
	Running() bool
}

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg    config.Config
	store  *history.Store
	board  *ranking.Board
	ctl    Controller
	broker *Broker
}

func NewRouter(cfg config.Config, st *history.Store, board *ranking.Board, ctl Controller, broker *Broker) *Router {
	return &Router{cfg: cfg, store: st, board: board, ctl: ctl, broker: broker}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/ranking", r.ranking)
	mux.HandleFunc("/api/history", r.history)
	mux.HandleFunc("/api/snapshot", r.snapshot)
	mux.HandleFunc("/api/highs", r.highs)
	mux.HandleFunc("/api/stats", r.stats)
	mux.HandleFunc("/api/sessions", r.sessions)
	mux.Handle("/api/events", r.broker)
	mux.HandleFunc("/ops/start", r.start)
	mux.HandleFunc("/ops/stop", r.stop)
	mux.HandleFunc("/ops/status", r.status)
	mux.HandleFunc("/ops/metrics", r.metrics)
	mux.HandleFunc("/ops/health", r.health)
}

func (r *Router) ranking(w http.ResponseWriter, req *http.Request) {
	region := req.URL.Query().Get("region")
	if region == "" {
		http.Error(w, "region required", http.StatusBadRequest)
		return
	}
	day := req.URL.Query().Get("day")
	if day == "" {
		day = config.Day(config.Now())
	}
	respondJSON(w, map[string]any{
		"region":  region,
		"day":     day,
		"entries": r.board.Ranking(region, day),
	})
}

func (r *Router) history(w http.ResponseWriter, req *http.Request) {
	good := req.URL.Query().Get("good")
	if good == "" {
		http.Error(w, "good required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	recs, err := r.store.HistoryByGood(req.Context(), good, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, recs)
}

func (r *Router) snapshot(w http.ResponseWriter, req *http.Request) {
	day := req.URL.Query().Get("day")
	if day == "" {
		day = config.Day(config.Now())
	}
	recs, err := r.store.DailySnapshot(req.Context(), day)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	profits := make([]int64, len(recs))
	for i, rec := range recs {
		profits[i] = rec.Profit
	}
	respondJSON(w, map[string]any{
		"day":     day,
		"records": recs,
		"summary": analysis.Summarize(profits),
	})
}

func (r *Router) highs(w http.ResponseWriter, req *http.Request) {
	highs, err := r.store.AllTimeHighs(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, highs)
}

// stats combines persisted aggregates with the pattern analysis and a
// hold-or-sell verdict on the most recent profit.
func (r *Router) stats(w http.ResponseWriter, req *http.Request) {
	good := req.URL.Query().Get("good")
	if good == "" {
		http.Error(w, "good required", http.StatusBadRequest)
		return
	}
	st, err := r.store.GoodStats(req.Context(), good)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	recs, err := r.store.HistoryByGood(req.Context(), good, 200)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Newest first in storage; the analysis wants oldest first.
	profits := make([]int64, len(recs))
	for i, rec := range recs {
		profits[len(recs)-1-i] = rec.Profit
	}
	out := map[string]any{"stats": st}
	if pattern, ok := analysis.Analyze(profits); ok {
		current := profits[len(profits)-1]
		out["pattern"] = pattern
		out["verdict"] = analysis.HoldOrSell(current, pattern)
		out["advice"] = analysis.Recommendation(current, recs[0].Quantity)
	}
	respondJSON(w, out)
}

func (r *Router) sessions(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	sessions, err := r.store.Sessions(req.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, sessions)
}

func (r *Router) start(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ctl.StartCapture(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	respondJSON(w, map[string]any{"running": true})
}

func (r *Router) stop(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ctl.StopCapture(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	respondJSON(w, map[string]any{"running": false})
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	day := config.Day(config.Now())
	respondJSON(w, map[string]any{
		"running": r.ctl.Running(),
		"layout":  r.cfg.LayoutID,
		"day":     day,
		"regions": r.board.Regions(day),
		"metrics": metrics.Snapshot(),
	})
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, metrics.Snapshot())
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
