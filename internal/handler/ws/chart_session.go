package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MacroPull/internal/domain/models"
	dservice "MacroPull/internal/domain/service"
	"MacroPull/internal/handler/api"
	"MacroPull/internal/service/metrics"
	"MacroPull/internal/services/chart"
	"MacroPull/internal/services/scale"
	xhttp "MacroPull/pkg/http"
	xlogger "MacroPull/pkg/logger"
)

// Client messages that are not pointer events.
const (
	msgScale  = "scale"
	msgDigits = "digits"
	msgSource = "source"
)

// Server messages.
const (
	msgView       = "view"
	msgAffordance = "affordance"
	msgError      = "error"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultReadTimeout  = 60 * time.Second
	writeTimeout        = 10 * time.Second
)

type inbound struct {
	Type      string   `json:"type"`
	X         *float64 `json:"x,omitempty"`
	Scale     string   `json:"scale,omitempty"`
	Digits    *int     `json:"digits,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	Dataset   string   `json:"dataset,omitempty"`
	Country   string   `json:"country,omitempty"`
	Transform *string  `json:"transform,omitempty"` // nil keeps the current one; "" or "none" clears it
}

type outbound struct {
	Type    string      `json:"type"`
	Session string      `json:"session,omitempty"`
	View    *chart.View `json:"view,omitempty"`
	Action  string      `json:"action,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ChartHandler runs interactive chart sessions over a websocket. The client
// streams pointer events; every event is answered with the recomputed view.
type ChartHandler struct {
	logger       *xlogger.Logger
	series       dservice.SeriesProvider
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	readTimeout  time.Duration
}

type Option func(*ChartHandler)

func WithLogger(l *xlogger.Logger) Option {
	return func(h *ChartHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithKeepalive sets the ping interval and the read deadline extended by each pong.
func WithKeepalive(ping, read time.Duration) Option {
	return func(h *ChartHandler) {
		if ping > 0 {
			h.pingInterval = ping
		}
		if read > 0 {
			h.readTimeout = read
		}
	}
}

// WithAllowedOrigins restricts the upgrade to the given origins. "*" or an
// empty list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *ChartHandler) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[o] = true
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowed[r.Header.Get("Origin")]
		}
	}
}

func NewChartHandler(series dservice.SeriesProvider, opts ...Option) *ChartHandler {
	metrics.Register()
	h := &ChartHandler{
		logger:       xlogger.NewNop(),
		series:       series,
		pingInterval: defaultPingInterval,
		readTimeout:  defaultReadTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ChartHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/chart/ws", h.Serve)
}

// Serve loads the requested series, then upgrades. Load failures are
// answered as plain HTTP errors before the upgrade.
func (h *ChartHandler) Serve(c echo.Context) error {
	req := &models.ChartSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	mode, err := scale.ParseMode(req.Scale)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	q := dservice.SeriesQuery{
		Provider:  req.Provider,
		Dataset:   req.Dataset,
		Country:   strings.ToUpper(req.Country),
		Transform: req.Transform,
	}
	s, err := h.series.GetSeries(c.Request().Context(), q)
	if err != nil {
		metrics.APIErrors.WithLabelValues("chart_ws", api.ErrorKind(err)).Inc()
		return xhttp.AppErrorResponse(c, api.ToAppError(err))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}

	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		series: h.series,
		query:  q,
	}
	sess.log = h.logger.With(xlogger.String("session", sess.id))
	sess.chart = chart.NewChart(sess, mode, req.Digits)
	if err := sess.chart.Load(s); err != nil {
		_ = sess.send(outbound{Type: msgError, Error: err.Error()})
		_ = conn.Close()
		return nil
	}

	metrics.ChartSessions.Inc()
	defer metrics.ChartSessions.Dec()
	sess.run(context.WithoutCancel(c.Request().Context()), h.pingInterval, h.readTimeout)
	return nil
}

// session owns one connection. The chart is only touched by the read loop;
// writes from the read loop and the ping loop share writeMu.
type session struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	chart   *chart.Chart
	series  dservice.SeriesProvider
	query   dservice.SeriesQuery
	log     *xlogger.Logger
}

// Suppress and Restore make the session the chart's drag affordance.
func (s *session) Suppress() { _ = s.send(outbound{Type: msgAffordance, Action: "suppress"}) }

func (s *session) Restore() { _ = s.send(outbound{Type: msgAffordance, Action: "restore"}) }

func (s *session) run(ctx context.Context, ping, readTimeout time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		// a drag cut short by a disconnect still releases its affordance
		s.chart.Machine().Cancel()
		_ = s.conn.Close()
		wg.Wait()
		s.log.Debug("chart session closed")
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(ctx, ping)
	}()

	s.log.Debug("chart session opened")
	view := s.chart.View()
	if err := s.send(outbound{Type: msgView, Session: s.id, View: &view}); err != nil {
		return
	}

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("chart session read failed", xlogger.Error(err))
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			if s.send(outbound{Type: msgError, Error: "malformed message"}) != nil {
				return
			}
			continue
		}
		if err := s.apply(ctx, msg); err != nil {
			if s.send(outbound{Type: msgError, Error: err.Error()}) != nil {
				return
			}
			continue
		}
		view := s.chart.View()
		if err := s.send(outbound{Type: msgView, View: &view}); err != nil {
			return
		}
	}
}

func (s *session) apply(ctx context.Context, msg inbound) error {
	switch msg.Type {
	case msgScale:
		mode, err := scale.ParseMode(msg.Scale)
		if err != nil {
			return err
		}
		s.chart.SetScale(mode)
	case msgDigits:
		if msg.Digits == nil || *msg.Digits < 0 {
			return errors.New("digits must be a non-negative integer")
		}
		s.chart.SetDigits(*msg.Digits)
	case msgSource:
		return s.reload(ctx, msg)
	default:
		return s.chart.Machine().Handle(chart.Event{Type: msg.Type, X: msg.X})
	}
	return nil
}

// reload swaps the plotted series. Fields left empty keep the current value.
func (s *session) reload(ctx context.Context, msg inbound) error {
	q := s.query
	if msg.Provider != "" {
		q.Provider = msg.Provider
	}
	if msg.Dataset != "" {
		q.Dataset = msg.Dataset
	}
	if msg.Country != "" {
		q.Country = strings.ToUpper(msg.Country)
	}
	if msg.Transform != nil {
		q.Transform = *msg.Transform
		if strings.EqualFold(q.Transform, "none") {
			q.Transform = ""
		}
	}
	series, err := s.series.GetSeries(ctx, q)
	if err != nil {
		return err
	}
	if err := s.chart.Load(series); err != nil {
		return err
	}
	s.query = q
	return nil
}

func (s *session) pingLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *session) send(m outbound) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(m)
}
