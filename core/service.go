package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// kindRoutes maps each operation kind to its HTTP route. Routes accept
// GET (parameters in the query string) and POST (parameters as a JSON
// object in the body; body values win on conflict).
var kindRoutes = map[Kind]string{
	KindService:     "/api/service",
	KindDistributed: "/api/distributed",
	KindTopology:    "/api/topology",
	KindEvent:       "/api/event",
	KindSLOSuccess:  "/api/slo/success",
	KindSLOFail:     "/api/slo/fail",
	KindSLOLatency:  "/api/slo/latency",
	KindTradeBuy:    "/api/trade/buy",
	KindTradeSell:   "/api/trade/sell",
	KindLoad:        "/api/load",
}

// Service is the HTTP dispatcher. It exposes one route per operation
// kind plus a generic /api/simulate endpoint, runs each request
// through the simulator, emits the resulting record to the sink, and
// maps the outcome to a status code: Success is 200, Failure is 500,
// and validation problems are 400.
//
// A Failure response still carries the full result body. The 500 is
// the simulated signal dashboards and alert rules are meant to see,
// not an error in the service itself.
type Service struct {
	cfg       *Config
	sim       *Simulator
	sink      Sink
	logger    Logger
	mux       *http.ServeMux
	handler   http.Handler
	createdAt time.Time

	mu      sync.Mutex
	server  *http.Server
	started bool
}

// NewService assembles the dispatcher. A nil simulator is built from
// the configuration's policy table and seed; a nil sink or logger
// falls back to the no-op sink and the production logger.
func NewService(cfg *Config, sim *Simulator, sink Sink, logger Logger) (*Service, error) {
	if cfg == nil {
		var err error
		cfg, err = NewConfig()
		if err != nil {
			return nil, err
		}
	}

	if sim == nil {
		table, err := cfg.PolicyTable()
		if err != nil {
			return nil, err
		}
		opts := []SimulatorOption{WithPolicies(table)}
		if cfg.RandSeed != 0 {
			opts = append(opts, WithSeed(cfg.RandSeed))
		}
		sim, err = NewSimulator(opts...)
		if err != nil {
			return nil, err
		}
	}

	if sink == nil {
		sink = &NoOpSink{}
	}
	if logger == nil {
		logger = NewProductionLogger(cfg.Logging, cfg.Name)
	}

	s := &Service{
		cfg:       cfg,
		sim:       sim,
		sink:      sink,
		logger:    logger,
		mux:       http.NewServeMux(),
		createdAt: time.Now(),
	}
	s.registerRoutes()

	var handler http.Handler = s.mux
	handler = LoggingMiddleware(logger, 0)(handler)
	if cfg.HTTP.CORS.Enabled {
		handler = CORSMiddleware(cfg.HTTP.CORS)(handler)
	}
	s.handler = otelhttp.NewHandler(handler, "opsim.http")

	return s, nil
}

// Handler returns the fully assembled HTTP handler, including
// middleware. Useful for tests and for embedding the dispatcher in an
// existing server.
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) registerRoutes() {
	for kind, route := range kindRoutes {
		s.mux.HandleFunc(route, s.handleKind(kind))
	}
	s.mux.HandleFunc("/api/simulate", s.handleSimulate)
	s.mux.HandleFunc("/api/operations", s.handleCatalog)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// handleKind creates the handler for one operation kind.
func (s *Service) handleKind(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeError(w, fmt.Errorf("method %s not allowed: %w", r.Method, ErrInvalidParameter), http.StatusMethodNotAllowed)
			return
		}

		params, err := parseParams(r)
		if err != nil {
			writeError(w, err, HTTPStatus(err))
			return
		}

		s.run(w, r, kind, params)
	}
}

// handleSimulate is the generic endpoint: the request body carries the
// kind alongside the parameters. Unknown kinds are rejected with 400.
func (s *Service) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, fmt.Errorf("method %s not allowed: %w", r.Method, ErrInvalidParameter), http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Kind       string                 `json:"kind"`
		Parameters map[string]interface{} `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("malformed request body: %w", ErrInvalidParameter), http.StatusBadRequest)
		return
	}

	kind, err := ParseKind(body.Kind)
	if err != nil {
		writeError(w, err, HTTPStatus(err))
		return
	}

	s.run(w, r, kind, body.Parameters)
}

// run executes one simulated operation and writes the response.
func (s *Service) run(w http.ResponseWriter, r *http.Request, kind Kind, params map[string]interface{}) {
	req := NewOperationRequest(kind, params)

	res, err := s.sim.Simulate(req)
	if err != nil {
		s.logger.Error("Simulation failed", map[string]interface{}{
			"kind":       string(kind),
			"request_id": req.ID,
			"error":      err.Error(),
		})
		writeError(w, err, HTTPStatus(err))
		return
	}

	rec := NewRecord(req, res, OriginHTTP)
	if err := s.sink.Emit(r.Context(), rec); err != nil {
		// Sink trouble never fails the request.
		s.logger.Error("Failed to emit telemetry record", map[string]interface{}{
			"request_id": req.ID,
			"error":      err.Error(),
		})
	}

	status := http.StatusOK
	if res.Failed() {
		status = http.StatusInternalServerError
	}

	s.logger.Info("Operation simulated", map[string]interface{}{
		"kind":       string(kind),
		"request_id": req.ID,
		"outcome":    string(res.Outcome),
		"latency_ms": res.LatencyMillis(),
		"status":     status,
	})

	if s.cfg.HTTP.HoldResponses {
		holdFor(r.Context(), res.Latency)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", req.ID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(newOperationResponse(req, res)); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{
			"request_id": req.ID,
			"error":      err.Error(),
		})
	}
}

// handleCatalog lists every operation kind with its route and the
// effective policy, so a demo driver can discover what to call.
func (s *Service) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, fmt.Errorf("method %s not allowed: %w", r.Method, ErrInvalidParameter), http.StatusMethodNotAllowed)
		return
	}

	type operationInfo struct {
		Kind               Kind    `json:"kind"`
		Route              string  `json:"route"`
		FailureProbability float64 `json:"failure_probability"`
		LatencyMinMillis   int64   `json:"latency_min_ms"`
		LatencyMaxMillis   int64   `json:"latency_max_ms"`
	}

	policies := s.sim.Policies()
	operations := make([]operationInfo, 0, len(kindRoutes))
	for _, kind := range Kinds() {
		p := policies[kind]
		operations = append(operations, operationInfo{
			Kind:               kind,
			Route:              kindRoutes[kind],
			FailureProbability: p.FailureProbability,
			LatencyMinMillis:   p.LatencyMin.Milliseconds(),
			LatencyMaxMillis:   p.LatencyMax.Milliseconds(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"service":    s.cfg.Name,
		"operations": operations,
	}); err != nil {
		s.logger.Error("Failed to encode catalog", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "healthy",
		"service":        s.cfg.Name,
		"uptime_seconds": int64(time.Since(s.createdAt).Seconds()),
	}); err != nil {
		s.logger.Error("Failed to encode health response", map[string]interface{}{"error": err.Error()})
	}
}

// Start starts the HTTP server and blocks until it exits. It returns
// http.ErrServerClosed after a clean Stop, like http.Server does.
func (s *Service) Start() error {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()
		return &OperationError{Op: "Service.Start", Err: ErrAlreadyStarted}
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	if s.cfg.Address == "" {
		addr = fmt.Sprintf(":%d", s.cfg.Port)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}

	// Mark started before the blocking call so a concurrent Start
	// fails fast instead of racing on the server field.
	s.started = true
	server := s.server
	s.mu.Unlock()

	s.logger.Info("Starting HTTP dispatcher", map[string]interface{}{
		"address":        addr,
		"cors":           s.cfg.HTTP.CORS.Enabled,
		"hold_responses": s.cfg.HTTP.HoldResponses,
	})

	return server.ListenAndServe()
}

// Stop gracefully shuts the server down, honoring the configured
// shutdown timeout on top of the caller's context.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil || !s.started {
		return &OperationError{Op: "Service.Stop", Err: ErrNotStarted}
	}

	shutdownCtx := ctx
	if s.cfg.HTTP.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
	}

	s.started = false
	return s.server.Shutdown(shutdownCtx)
}

// Run starts the server and shuts it down when ctx is canceled.
// A clean shutdown returns nil.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	if err := s.Stop(context.Background()); err != nil && !errors.Is(err, ErrNotStarted) {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// parseParams merges query string values with a JSON body, body
// values winning. Query values stay strings; parameter readers on
// OperationRequest convert as needed.
func parseParams(r *http.Request) (map[string]interface{}, error) {
	params := make(map[string]interface{})

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if r.Body != nil {
		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		switch {
		case err == nil:
			for k, v := range body {
				params[k] = v
			}
		case errors.Is(err, io.EOF):
			// No body. Query parameters alone are fine.
		default:
			return nil, fmt.Errorf("malformed JSON body: %w", ErrInvalidParameter)
		}
	}

	return params, nil
}

// holdFor waits out the simulated latency, returning early when the
// request is canceled.
func holdFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// operationResponse is the wire form of an operation result.
type operationResponse struct {
	ID            string                 `json:"id"`
	Kind          Kind                   `json:"kind"`
	Outcome       Outcome                `json:"outcome"`
	LatencyMillis int64                  `json:"latency_ms"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	Events        []childEventJSON       `json:"events,omitempty"`
}

type childEventJSON struct {
	Name           string                 `json:"name"`
	OffsetMillis   int64                  `json:"offset_ms"`
	DurationMillis int64                  `json:"duration_ms,omitempty"`
	Attributes     map[string]interface{} `json:"attributes,omitempty"`
}

func newOperationResponse(req OperationRequest, res OperationResult) operationResponse {
	events := make([]childEventJSON, 0, len(res.Events))
	for _, ev := range res.Events {
		events = append(events, childEventJSON{
			Name:           ev.Name,
			OffsetMillis:   ev.Offset.Milliseconds(),
			DurationMillis: ev.Duration.Milliseconds(),
			Attributes:     ev.Attributes,
		})
	}
	return operationResponse{
		ID:            req.ID,
		Kind:          req.Kind,
		Outcome:       res.Outcome,
		LatencyMillis: res.LatencyMillis(),
		Attributes:    res.Attributes,
		Events:        events,
	}
}

// writeError writes a JSON error payload with the given status.
func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding a flat map of strings cannot fail.
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	})
}
