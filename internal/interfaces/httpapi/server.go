package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ckbrelay/internal/application"
	"ckbrelay/internal/calldata"
	"ckbrelay/internal/config"
	"ckbrelay/internal/domain"
)

type StateStore interface {
	LastRelayedBlock(ctx context.Context) (uint64, bool, error)
	RelayedRange(ctx context.Context) (uint64, uint64, bool, error)
	Ping(ctx context.Context) error
}

type CallStore interface {
	QueryCallRecords(ctx context.Context, filter application.CallRecordFilter) ([]domain.CallRecord, error)
}

type ChainStatus interface {
	TipBlockNumber(ctx context.Context) (uint64, error)
}

// Deps wires the server. Only State is required; endpoints whose dependency
// is missing answer 503.
type Deps struct {
	State     StateStore
	Calls     CallStore
	Chain     ChainStatus
	Publisher application.CallWriter
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	cfg       config.Config
	deps      Deps
	encoder   calldata.Encoder
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(cfg config.Config, deps Deps, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if deps.State == nil {
		return nil, errors.New("http server requires a state store")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{cfg: cfg, deps: deps, encoder: calldata.NewABIEncoder(), metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/calls", s.handleCalls)
	mux.HandleFunc("/calldata/set-state", s.handleSetState)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.State.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	if s.deps.Chain != nil {
		if _, err := s.deps.Chain.TipBlockNumber(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "ckb rpc not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	last, ok, err := s.deps.State.LastRelayedBlock(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "state read failed")
		return
	}
	low, high, hasBlocks, err := s.deps.State.RelayedRange(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "block range failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"last_relayed_block": last,
		"has_state":          ok,
		"relayed_from":       low,
		"relayed_to":         high,
		"has_blocks":         hasBlocks,
		"config": map[string]any{
			"ckb_rpc_url":   s.cfg.CKBRPCURL,
			"db_driver":     s.cfg.DBDriver,
			"http_addr":     s.cfg.HTTPAddr,
			"start_block":   s.cfg.StartBlock,
			"confirmations": s.cfg.Confirmations,
			"batch_size":    s.cfg.BatchSize,
			"poll_interval": s.cfg.PollInterval.String(),
			"relay_headers": s.cfg.RelayHeaders,
			"relay_cells":   s.cfg.RelayCells,
			"topic_prefix":  s.cfg.KafkaTopicPrefix,
		},
	})
}

type callRecordView struct {
	Contract    string    `json:"contract"`
	Method      string    `json:"method"`
	Selector    string    `json:"selector"`
	PayloadSize int       `json:"payload_size"`
	Items       int       `json:"items"`
	FromBlock   uint64    `json:"from_block"`
	ToBlock     uint64    `json:"to_block"`
	TraceID     string    `json:"trace_id,omitempty"`
	DecodedOK   bool      `json:"decoded_ok"`
	Error       string    `json:"error,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if s.deps.Calls == nil {
		respondError(w, http.StatusServiceUnavailable, "call audit not available")
		return
	}
	filter, err := parseCallFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.deps.Calls.QueryCallRecords(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	views := make([]callRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, callRecordView(rec))
	}
	respondJSON(w, http.StatusOK, views)
}

type setStateRequest struct {
	AllowRead *bool  `json:"allow_read"`
	Reason    string `json:"reason"`
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.deps.Publisher == nil {
		respondError(w, http.StatusServiceUnavailable, "publisher not available")
		return
	}
	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AllowRead == nil {
		respondError(w, http.StatusBadRequest, "allow_read is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "operator"
	}
	msg, err := application.PublishControl(r.Context(), s.encoder, s.deps.Publisher, calldata.NewSetStateCall(*req.AllowRead), req.Reason)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.metrics.IncControlCall()
	respondJSON(w, http.StatusAccepted, map[string]any{
		"contract": msg.Contract,
		"method":   msg.Method,
		"data":     msg.Data,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func parseCallFilter(r *http.Request) (application.CallRecordFilter, error) {
	query := r.URL.Query()
	filter := application.CallRecordFilter{
		Contract: query.Get("contract"),
		Method:   query.Get("method"),
	}
	if filter.Contract != "" {
		if _, err := calldata.Schema(calldata.Contract(filter.Contract)); err != nil {
			return filter, fmt.Errorf("unknown contract %q", filter.Contract)
		}
	}
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = value
	}
	if raw := query.Get("from_block"); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, errors.New("invalid from_block")
		}
		filter.FromBlock = &value
	}
	return filter, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
