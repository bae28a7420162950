package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/actionable"
	"call-analytics-go/internal/aggregator"
	"call-analytics-go/internal/dataset"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/storage"
	"call-analytics-go/internal/types"
)

// maxBodyBytes leaves room for base64 overhead on a 25 MiB audio payload.
const maxBodyBytes = 36 << 20

// Pipeline is the processing side the server drives.
type Pipeline interface {
	ProcessInput(ctx context.Context, callID string, input types.RawInput) (*types.CallState, error)
	Batch(ctx context.Context, jobs []processor.Job, concurrency int) []processor.BatchResult
}

// Reader is the query side of the store.
type Reader interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, callID string) (*storage.CallRecord, error)
	ManualReviewQueue(ctx context.Context, limit int) ([]types.IndexEntry, error)
	FlaggedQueue(ctx context.Context, limit int) ([]types.IndexEntry, error)
	AgentRankings(ctx context.Context) ([]types.AgentPerformance, error)
	AgentScoresInRange(ctx context.Context, agent string, r storage.TimeRange) ([]types.ScoreRecord, error)
}

type Server struct {
	pipeline    Pipeline
	store       Reader
	log         *logger.Logger
	gatherer    prometheus.Gatherer
	datasetPath string
	demoLimit   int
}

type Option func(*Server)

// WithMetrics exposes gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithDataset enables /demo over the first rows of an .xlsx workbook.
func WithDataset(path string, limit int) Option {
	return func(s *Server) {
		s.datasetPath = path
		if limit > 0 {
			s.demoLimit = limit
		}
	}
}

func New(p Pipeline, store Reader, log *logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{pipeline: p, store: store, log: log, demoLimit: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /calls", s.handleProcess)
	mux.HandleFunc("GET /calls/{id}", s.handleGetCall)
	mux.HandleFunc("GET /review", s.handleReview)
	mux.HandleFunc("GET /review/flagged", s.handleFlagged)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /agents/{name}/report", s.handleAgentReport)
	mux.HandleFunc("POST /demo", s.handleDemo)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

type processRequest struct {
	CallID      string `json:"call_id"`
	Text        string `json:"text"`
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
}

// CallResponse is what a client sees after processing or lookup.
type CallResponse struct {
	CallID        string              `json:"call_id"`
	RecordKey     string              `json:"record_key"`
	Persisted     bool                `json:"persisted"`
	Safety        types.SafetyVerdict `json:"safety"`
	ReviewReasons types.ReviewReasons `json:"manual_review_reasons"`
	StageErrors   []types.StageError  `json:"stage_errors,omitempty"`
	Metadata      *types.Metadata     `json:"metadata,omitempty"`
	Summary       *types.Summary      `json:"summary,omitempty"`
	Quality       *types.Quality      `json:"quality,omitempty"`
	Transcript    []types.Turn        `json:"transcript,omitempty"`
	Error         string              `json:"error,omitempty"`
}

func responseFor(st *types.CallState) CallResponse {
	return CallResponse{
		CallID:        st.CallID,
		RecordKey:     storage.RecordKey(st),
		Persisted:     true,
		Safety:        st.Safety,
		ReviewReasons: st.ReviewReasons,
		StageErrors:   st.StageErrors,
		Metadata:      st.Metadata,
		Summary:       st.Summary,
		Quality:       st.Quality,
		Transcript:    st.Turns(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WithRequest(r).WithError(err).Warn("health check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "ok")
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "process")

	var req processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		reqLog.WithError(err).Warn("bad request body")
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var input types.RawInput
	switch {
	case req.Text != "" && req.AudioBase64 != "":
		http.Error(w, "send either text or audio_base64, not both", http.StatusBadRequest)
		return
	case req.AudioBase64 != "":
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			http.Error(w, "audio_base64 is not valid base64", http.StatusBadRequest)
			return
		}
		input = types.AudioInput(audio, req.Format)
	default:
		input = types.TextInput(req.Text)
	}

	start := time.Now()
	st, err := s.pipeline.ProcessInput(r.Context(), req.CallID, input)
	if st == nil {
		reqLog.WithField("error", err.Error()).Warn("input rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reqLog.WithFields(logrus.Fields{
		"call_id":     st.CallID,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("call processed")

	resp := responseFor(st)
	status := http.StatusOK
	if err != nil {
		resp.Persisted = false
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp, reqLog)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "get_call")
	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}
	if err != nil {
		reqLog.WithError(err).Error("load call failed")
		http.Error(w, "failed to load call", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec, reqLog)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "review")
	entries, err := s.store.ManualReviewQueue(r.Context(), limitParam(r))
	if err != nil {
		reqLog.WithError(err).Error("review queue failed")
		http.Error(w, "failed to load review queue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries), reqLog)
}

func (s *Server) handleFlagged(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "flagged")
	entries, err := s.store.FlaggedQueue(r.Context(), limitParam(r))
	if err != nil {
		reqLog.WithError(err).Error("flagged queue failed")
		http.Error(w, "failed to load flagged calls", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries), reqLog)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "agents")
	rankings, err := s.store.AgentRankings(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("rankings failed")
		http.Error(w, "failed to load agents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rankings), reqLog)
}

type agentReportResponse struct {
	Report   aggregator.Report     `json:"report"`
	Coaching actionable.ActionCard `json:"coaching"`
}

func (s *Server) handleAgentReport(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "agent_report")
	name := r.PathValue("name")
	var (
		window storage.TimeRange
		err    error
	)
	if window.From, err = storage.ParseTimeBound(r.URL.Query().Get("from")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if window.To, err = storage.ParseTimeBound(r.URL.Query().Get("to")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scores, err := s.store.AgentScoresInRange(r.Context(), name, window)
	if err != nil {
		reqLog.WithError(err).Error("agent scores failed")
		http.Error(w, "failed to load agent", http.StatusInternalServerError)
		return
	}
	if len(scores) == 0 {
		http.Error(w, "no eligible calls for agent", http.StatusNotFound)
		return
	}
	rep := aggregator.BuildReport(name, scores)
	writeJSON(w, http.StatusOK, agentReportResponse{Report: rep, Coaching: actionable.Generate(rep)}, reqLog)
}

// handleDemo processes the first rows of the configured workbook.
func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "demo")
	if s.datasetPath == "" {
		http.Error(w, "DATASET_PATH not configured", http.StatusNotFound)
		return
	}
	jobs, skipped, err := dataset.Load(s.datasetPath)
	if err != nil {
		reqLog.WithError(err).Error("dataset load error")
		http.Error(w, "dataset load error", http.StatusInternalServerError)
		return
	}
	if len(jobs) > s.demoLimit {
		jobs = jobs[:s.demoLimit]
	}
	reqLog.WithFields(logrus.Fields{"jobs": len(jobs), "skipped": len(skipped)}).Info("demo invoked")
	results := s.pipeline.Batch(r.Context(), jobs, 2)
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": dataset.Summarize(results),
		"results": results,
		"skipped": skipped,
	}, reqLog)
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any, log *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
