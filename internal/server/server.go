// Package server exposes the HTTP surface: one POST route per
// configured endpoint, the platform webhook, and liveness endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"hookbot/internal/config"
	"hookbot/internal/dispatch"
	"hookbot/internal/format"
	"hookbot/internal/payload"
	"hookbot/internal/router"
	"hookbot/internal/transport"
	"hookbot/internal/transport/telegram"
	"hookbot/pkg/logx"
)

type Server struct {
	cfg        config.ServerConfig
	assembler  *dispatch.Assembler
	dispatcher *dispatch.Dispatcher
	router     *router.Router
	registry   *format.Registry
	log        logx.Logger

	mux       *http.ServeMux
	endpoints map[string]*dispatch.Endpoint
	reserved  map[string]struct{}
	srv       *http.Server
}

func New(cfg config.ServerConfig, assembler *dispatch.Assembler, dispatcher *dispatch.Dispatcher, rt *router.Router, registry *format.Registry, log logx.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		assembler:  assembler,
		dispatcher: dispatcher,
		router:     rt,
		registry:   registry,
		log:        log,
		mux:        http.NewServeMux(),
		endpoints:  make(map[string]*dispatch.Endpoint),
		reserved:   map[string]struct{}{"/": {}, "/health": {}},
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleRoot)
	return s
}

// RegisterEndpoint mounts one notification endpoint at its path.
func (s *Server) RegisterEndpoint(ep *dispatch.Endpoint) error {
	path := ep.Spec.Path
	if _, taken := s.reserved[path]; taken {
		return config.Errorf("endpoints", "path %s is reserved", path)
	}
	if _, dup := s.endpoints[path]; dup {
		return config.Errorf("endpoints", "duplicate path %s", path)
	}
	s.endpoints[path] = ep
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		s.handleNotify(w, r, ep)
	})
	s.log.Info("endpoint registered", logx.String("path", path))
	return nil
}

// RegisterWebhook mounts the platform update route and reserves its
// path so no endpoint can claim it later.
func (s *Server) RegisterWebhook(path string) error {
	if _, taken := s.reserved[path]; taken {
		return config.Errorf("bot", "webhook_path %s is reserved", path)
	}
	if _, taken := s.endpoints[path]; taken {
		return config.Errorf("bot", "webhook_path %s collides with an endpoint", path)
	}
	s.reserved[path] = struct{}{}
	s.mux.HandleFunc(path, s.handleWebhook)
	s.log.Info("webhook registered", logx.String("path", path))
	return nil
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request, ep *dispatch.Endpoint) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
		writeError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid or missing API key")
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}

	status, body := s.notify(r.Context(), ep, raw)
	writeJSON(w, status, body)
}

// notify runs the pipeline for one request and produces the HTTP
// response. Shared with the scheduler's synthetic requests.
func (s *Server) notify(ctx context.Context, ep *dispatch.Endpoint, raw map[string]any) (int, any) {
	p := payload.Normalize(raw, ep.Spec.FieldMap)

	plan, err := s.assembler.Build(ep, p)
	if err != nil {
		var nf *format.NotFoundError
		if errors.As(err, &nf) {
			return http.StatusNotFound, errorBody("formatter_not_found", err.Error())
		}
		var verr *transport.ValidationError
		if errors.As(err, &verr) {
			return http.StatusBadRequest, errorBody(verr.ErrorCode(), verr.Msg)
		}
		s.log.Error("assembly failed", logx.String("path", ep.Spec.Path), logx.Err(err))
		return http.StatusInternalServerError, errorBody("send_failed", err.Error())
	}

	results := s.dispatcher.Dispatch(ctx, plan)

	type resultEntry struct {
		ChatID    string `json:"chat_id"`
		MessageID int    `json:"message_id,omitempty"`
		Error     string `json:"error,omitempty"`
	}
	entries := make([]resultEntry, 0, len(results))
	failed := 0
	for _, res := range results {
		e := resultEntry{ChatID: res.ChatID, MessageID: res.MessageID}
		if res.Err != nil {
			e.Error = res.Err.Error()
			failed++
		}
		entries = append(entries, e)
	}

	if failed == len(entries) {
		// Nothing got through at all.
		return http.StatusBadGateway, map[string]any{
			"detail": map[string]any{
				"error":   "send_failed",
				"message": fmt.Sprintf("delivery failed for all %d chats", len(plan.ChatIDs)),
				"results": entries,
			},
		}
	}
	return http.StatusOK, map[string]any{
		"status":  "sent",
		"results": entries,
	}
}

// Fire delivers a synthetic payload to the endpoint registered at path.
// Used by the cron scheduler.
func (s *Server) Fire(ctx context.Context, path string, raw map[string]any) error {
	ep, ok := s.endpoints[path]
	if !ok {
		return fmt.Errorf("no endpoint at %s", path)
	}
	status, _ := s.notify(ctx, ep, raw)
	if status != http.StatusOK {
		return fmt.Errorf("endpoint %s: status %d", path, status)
	}
	return nil
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	up, err := telegram.ParseUpdate(body)
	if err != nil {
		s.log.Warn("webhook body unreadable", logx.Err(err))
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.router.HandleUpdate(r.Context(), up)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"endpoints":       len(s.endpoints),
		"formatter_count": len(names),
		"formatters":      names,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
		return
	}
	names := s.registry.Names()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":            "hookbot",
		"status":          "healthy",
		"endpoints":       len(s.endpoints),
		"formatter_count": len(names),
		"formatters":      names,
		"health":          "/health",
	})
}

func (s *Server) Handler() http.Handler { return s.mux }

// Start listens and serves until the context ends.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logx.String("addr", addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func errorBody(code, msg string) map[string]any {
	return map[string]any{
		"detail": map[string]any{
			"error":   code,
			"message": msg,
		},
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody(code, msg))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
