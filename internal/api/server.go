package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"kvstress/internal/corpus"
	"kvstress/internal/events"
	"kvstress/internal/logger"
	"kvstress/internal/metrics"
	"kvstress/internal/scenario"
	"kvstress/internal/store"
)

// Options はサーバーが実行に使う依存
type Options struct {
	Base    scenario.Config    // リクエストで上書きされる土台の設定
	Store   store.Config       // 実行ごとに Open する
	Corpus  *corpus.Corpus     // seed 行
	Metrics *metrics.Collector // nil なら新規作成
	Logger  *logger.Logger     // nil なら logger.Default
}

// Server はAPIサーバー
type Server struct {
	addr     string
	base     scenario.Config
	storeCfg store.Config
	corpus   *corpus.Corpus
	metrics  *metrics.Collector
	log      *logger.Logger
	bus      *events.Bus

	mu        sync.RWMutex
	engine    *scenario.Engine
	config    scenario.Config
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	result    *scenario.Result
	wsClients map[*websocket.Conn]bool

	closeOnce sync.Once
	server    *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string, opts Options) *Server {
	s := &Server{
		addr:      addr,
		base:      opts.Base,
		storeCfg:  opts.Store,
		corpus:    opts.Corpus,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		bus:       events.NewBus(),
		wsClients: make(map[*websocket.Conn]bool),
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.log == nil {
		s.log = logger.Default
	}

	return s
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/run/stop", s.handleStop)
	mux.HandleFunc("/api/result", s.handleResult)
	mux.Handle("/metrics", s.metrics.Handler())

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する。ctx が終了するとシャットダウンする。
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.Close()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close は実行中のランを止め、完了を待ってからイベント配信を終了する
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.mu.RLock()
		cancel, done := s.cancel, s.done
		s.mu.RUnlock()
		if cancel != nil {
			cancel()
			<-done
		}
		s.bus.Close()
	})
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running      bool   `json:"running"`
	ScenarioName string `json:"scenario_name,omitempty"`
	Phase        string `json:"phase,omitempty"`
	KeyCount     int    `json:"key_count,omitempty"`
	HitKeyCount  int    `json:"hit_key_count,omitempty"`
	Readers      int    `json:"readers,omitempty"`
	Writers      int    `json:"writers,omitempty"`
	Backend      string `json:"backend"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		Running: s.running,
		Backend: s.storeCfg.Backend,
	}
	if s.config.Name != "" {
		resp.ScenarioName = s.config.Name
		resp.KeyCount = s.config.KeyCount
		resp.HitKeyCount = s.config.HitKeyCount()
		resp.Readers = s.config.Readers
		resp.Writers = s.config.Writers
	}
	if s.engine != nil {
		resp.Phase = s.engine.CurrentPhase()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	KeyCount    int    `json:"key_count"`
	Readers     int    `json:"readers"`
	Writers     int    `json:"writers"`
	Duration    string `json:"duration"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		c, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        c.Name,
			Description: c.Description,
			KeyCount:    c.KeyCount,
			Readers:     c.Readers,
			Writers:     c.Writers,
			Duration:    c.TotalDuration.String(),
		})
	}

	s.writeJSON(w, presets)
}

// RunRequest はラン開始リクエスト。空のフィールドは土台の設定を使う。
type RunRequest struct {
	Preset     string `json:"preset,omitempty"`
	Duration   string `json:"duration,omitempty"`
	KeyCount   int    `json:"key_count,omitempty"`
	HitPercent int    `json:"hit_percent,omitempty"`
	Readers    int    `json:"readers,omitempty"`
	Writers    int    `json:"writers,omitempty"`
}

func (s *Server) buildConfig(req RunRequest) (scenario.Config, error) {
	config := s.base
	if req.Preset != "" {
		p, ok := scenario.GetPreset(req.Preset)
		if !ok {
			return config, errors.New("unknown preset: " + req.Preset)
		}
		config = p
	}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d < 0 {
			return config, errors.New("invalid duration: " + req.Duration)
		}
		config.TotalDuration = d
	}
	if req.KeyCount > 0 {
		config.KeyCount = req.KeyCount
	}
	if req.HitPercent > 0 && req.HitPercent <= 100 {
		config.HitPercent = req.HitPercent
	}
	if req.Readers > 0 {
		config.Readers = req.Readers
	}
	if req.Writers > 0 {
		config.Writers = req.Writers
	}
	return config, nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	config, err := s.buildConfig(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Run already in progress", http.StatusConflict)
		return
	}

	st, err := store.Open(s.storeCfg)
	if err != nil {
		s.mu.Unlock()
		s.log.Error("", "failed to open store: %v", err)
		http.Error(w, "Failed to open store", http.StatusServiceUnavailable)
		return
	}

	engine := scenario.New(config, st, s.corpus)
	engine.SetEventBus(s.bus)
	engine.SetMetrics(s.metrics)
	engine.SetLogger(s.log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.config = config
	s.engine = engine
	s.cancel = cancel
	s.done = done
	s.running = true
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		defer close(done)
		defer cancel()

		result := engine.Run(ctx, config.Readers, config.Writers, config.TotalDuration)
		if err := st.Close(); err != nil {
			s.log.Warn("", "failed to close store: %v", err)
		}

		s.mu.Lock()
		s.running = false
		s.result = result
		s.mu.Unlock()

		if result.Err != nil {
			s.log.Error("", "Run failed in %s: %v", result.FailedPhase, result.Err)
		} else {
			s.log.Info("", "Run completed: %d phases, %d validations", len(result.Phases), len(result.Validations))
		}

		s.broadcast(map[string]any{
			"type":   "run_complete",
			"result": newResultResponse(result),
		})
	}()

	s.writeJSON(w, map[string]string{"status": "started", "scenario": config.Name})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	running, cancel := s.running, s.cancel
	s.mu.RUnlock()

	if !running {
		http.Error(w, "No run in progress", http.StatusBadRequest)
		return
	}
	cancel()

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// ResultResponse は直近のランの結果
type ResultResponse struct {
	ScenarioName string           `json:"scenario_name"`
	OK           bool             `json:"ok"`
	FailedPhase  string           `json:"failed_phase,omitempty"`
	Error        string           `json:"error,omitempty"`
	Duration     string           `json:"duration"`
	Phases       []string         `json:"phases"`
	Validations  []ValidationInfo `json:"validations"`
	Report       string           `json:"report"`
}

// ValidationInfo は validate 1回分の結果
type ValidationInfo struct {
	Checked    int  `json:"checked"`
	Total      int  `json:"total"`
	Mismatches int  `json:"mismatches"`
	Missing    int  `json:"missing"`
	Truncated  bool `json:"truncated"`
}

func newResultResponse(r *scenario.Result) ResultResponse {
	resp := ResultResponse{
		ScenarioName: r.ScenarioName,
		OK:           r.OK(),
		FailedPhase:  r.FailedPhase,
		Duration:     r.Duration.Round(time.Millisecond).String(),
		Report:       r.Report(),
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	for _, p := range r.Phases {
		resp.Phases = append(resp.Phases, p.Phase)
	}
	for _, v := range r.Validations {
		resp.Validations = append(resp.Validations, ValidationInfo{
			Checked:    v.Checked,
			Total:      v.Total,
			Mismatches: v.Mismatches,
			Missing:    v.Missing,
			Truncated:  v.Truncated,
		})
	}
	return resp
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.result
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "No result yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, newResultResponse(result))
}

// handleWebSocket は接続ごとにバスを購読し、イベントを送り続ける
// ?types=phase_start,phase_complete で受け取る種別を絞れる
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	ch := s.bus.Subscribe(parseEventTypes(ws.Request().URL.Query().Get("types"))...)
	defer s.bus.Unsubscribe(ch)

	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, map[string]any{
				"type":  "event",
				"event": ev,
			}); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func parseEventTypes(raw string) []events.EventType {
	var types []events.EventType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, events.EventType(part))
		}
	}
	return types
}

// ClientCount は接続中の WebSocket クライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("", "Failed to encode JSON: %v", err)
	}
}
