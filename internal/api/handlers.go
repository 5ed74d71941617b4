package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bubblbu/sica-mapping/internal/engine"
	"github.com/Bubblbu/sica-mapping/internal/filter"
	"github.com/Bubblbu/sica-mapping/internal/geo"
	"github.com/Bubblbu/sica-mapping/internal/loader"
	"github.com/Bubblbu/sica-mapping/internal/middleware"
	"github.com/Bubblbu/sica-mapping/internal/registry"
	"github.com/Bubblbu/sica-mapping/internal/stream"
)

// EventRequest is the JSON body of POST /api/events. Type selects the
// interaction and matches the engine event names; the remaining fields are
// read depending on the type.
type EventRequest struct {
	Type string `json:"type"`

	// Hover and select events.
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
	On   bool   `json:"on"`

	// Filter events.
	Criteria *filter.Criteria `json:"criteria,omitempty"`

	// Viewport events.
	Bounds *geo.Bounds `json:"bounds,omitempty"`
	Zoom   float64     `json:"zoom,omitempty"`
}

// StateResponse is the JSON body of GET /api/state: the current visual
// snapshot plus the static filter configuration the client needs to build
// its criteria controls.
type StateResponse struct {
	Update engine.Update        `json:"update"`
	Config *loader.FilterConfig `json:"config,omitempty"`
}

// Handlers serves the HTTP surface of the map engine: snapshot reads,
// interaction events, and the WebSocket update feed.
type Handlers struct {
	engine      *engine.Engine
	reg         *registry.Registry
	broadcaster *stream.Broadcaster
	config      *loader.FilterConfig

	ready atomic.Bool
}

// NewHandlers creates the API handlers. The config may be nil when the
// server was bootstrapped from a bundle without filter metadata.
func NewHandlers(eng *engine.Engine, reg *registry.Registry, b *stream.Broadcaster, config *loader.FilterConfig) *Handlers {
	return &Handlers{
		engine:      eng,
		reg:         reg,
		broadcaster: b,
		config:      config,
	}
}

// SetReady marks the handlers as ready to accept interaction events.
// Event and WebSocket endpoints return 503 until this is called with true.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RegisterRoutes attaches all API routes to the mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.State)
	mux.HandleFunc("/api/events", h.Events)
	mux.HandleFunc("/api/ws", h.Updates)
	mux.HandleFunc("/health", h.Health)
}

// State handles GET /api/state. It returns the current snapshot of every
// marker and block plus the filter configuration.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	resp := StateResponse{
		Update: h.engine.Snapshot(),
		Config: h.config,
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Events handles POST /api/events. The resulting update is returned to the
// caller and broadcast to every WebSocket subscriber.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if !h.ready.Load() {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotReady)
		WriteError(w, ctx, StatusCodeMapping(ErrCodeNotReady), ErrCodeNotReady, "Map layers are not attached yet")
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	var u engine.Update
	switch req.Type {
	case engine.EventHover, engine.EventSelect:
		if code, msg := h.validateEntity(req.Kind, req.ID); code != "" {
			ctx = middleware.SetErrorCode(ctx, code)
			WriteError(w, ctx, StatusCodeMapping(code), code, msg)
			return
		}
		if req.Type == engine.EventHover {
			u = h.engine.Hover(ctx, req.Kind, req.ID, req.On)
		} else {
			u = h.engine.Select(ctx, req.Kind, req.ID, req.On)
		}

	case engine.EventApplyFilter:
		if req.Criteria == nil {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Filter event requires criteria")
			return
		}
		if name := h.unknownMetric(*req.Criteria); name != "" {
			ctx = middleware.SetErrorCode(ctx, ErrCodeInvalidMetric)
			WriteError(w, ctx, StatusCodeMapping(ErrCodeInvalidMetric), ErrCodeInvalidMetric, "Unknown metric: "+name)
			return
		}
		u = h.engine.ApplyFilter(ctx, *req.Criteria)

	case engine.EventSetViewport:
		if req.Bounds == nil {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Viewport event requires bounds")
			return
		}
		u = h.engine.SetViewport(ctx, *req.Bounds, req.Zoom)

	case engine.EventSetColorize:
		u = h.engine.SetColorize(ctx, req.On)

	case engine.EventSetChoropleth:
		u = h.engine.SetChoropleth(ctx, req.On)

	default:
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnknownEvent)
		WriteError(w, ctx, StatusCodeMapping(ErrCodeUnknownEvent), ErrCodeUnknownEvent, "Unknown event type: "+req.Type)
		return
	}

	h.broadcaster.Broadcast(u)
	writeJSON(w, r, http.StatusOK, u)
}

// Updates handles GET /api/ws. It upgrades the connection, sends the
// current snapshot, then streams every subsequent update until the client
// disconnects.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.ready.Load() {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotReady)
		WriteError(w, ctx, StatusCodeMapping(ErrCodeNotReady), ErrCodeNotReady, "Map layers are not attached yet")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	// Seed the client with the full current state before live updates.
	if err := h.broadcaster.SubscribeSeeded(conn, h.engine.Snapshot()); err != nil {
		slog.WarnContext(ctx, "failed to seed websocket client", "error", err)
	}

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to map updates",
		"request_id", requestID,
	)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"request_id", requestID,
		)
	}()

	// Clients do not send messages; reading detects disconnection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
			}
			break
		}
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	checks := map[string]string{"runtime": "ok"}
	status := "healthy"
	code := http.StatusOK
	if h.ready.Load() {
		checks["layers"] = "ok"
	} else {
		checks["layers"] = "pending"
		status = "starting"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, r, code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// validateEntity resolves a hover or select target against the registry.
// It returns an error code and message, or "" when the target is valid.
func (h *Handlers) validateEntity(kind, id string) (code, message string) {
	if id == "" {
		return ErrCodeValidation, "Entity id is required"
	}
	switch kind {
	case registry.KindBuilding:
		if _, ok := h.reg.Buildings[id]; !ok {
			return ErrCodeUnknownEntity, "No such building: " + id
		}
	case registry.KindBlock:
		if _, ok := h.reg.Blocks[id]; !ok {
			return ErrCodeUnknownEntity, "No such block: " + id
		}
	case registry.KindOwner:
		if _, ok := h.reg.Owners[id]; !ok {
			return ErrCodeUnknownEntity, "No such owner: " + id
		}
	default:
		return ErrCodeValidation, "Unknown entity kind: " + kind
	}
	return "", ""
}

// unknownMetric returns the first criteria metric name the server has no
// configuration for, or "" when all names resolve.
func (h *Handlers) unknownMetric(c filter.Criteria) string {
	if h.config == nil {
		return ""
	}
	for name := range c.MetricRanges {
		if _, ok := h.config.Metrics[name]; !ok {
			return name
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
