package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroPull/internal/domain/models"
	dservice "MacroPull/internal/domain/service"
	"MacroPull/internal/services/chart"
	"MacroPull/pkg/util"
)

type yearlySeries struct{}

func (yearlySeries) GetSeries(_ context.Context, q dservice.SeriesQuery) (*models.Series, error) {
	if q.Provider != "wb" {
		return nil, &models.UnsupportedProviderError{Provider: q.Provider}
	}
	mult := 1e9
	if q.Dataset == "CPI" {
		mult = 1
	}
	s := &models.Series{ID: "worldbank:" + q.Dataset, Title: q.Dataset}
	if q.Transform != "" {
		s.ID += ":" + q.Transform
	}
	for i := 0; i < 5; i++ {
		s.Points = append(s.Points, models.SeriesPoint{
			Time:  fmt.Sprintf("%d", 2000+i),
			Value: models.Value(float64(i+1) * mult),
		})
	}
	return s, nil
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	e := echo.New()
	NewChartHandler(yearlySeries{}).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chart/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func next(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m outbound
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func sendEvent(t *testing.T, conn *websocket.Conn, m inbound) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(m))
}

func yearX(t *testing.T, year string) *float64 {
	t.Helper()
	x, ok := util.PeriodMillis(year)
	require.True(t, ok)
	return &x
}

func TestChartSessionDragZoomReset(t *testing.T) {
	conn := dial(t, startServer(t), "provider=wb&dataset=GDP")

	first := next(t, conn)
	require.Equal(t, msgView, first.Type)
	assert.NotEmpty(t, first.Session)
	assert.Equal(t, chart.StateIdle, first.View.State)
	assert.Equal(t, "b", first.View.Scale.Mode)
	assert.Equal(t, 5, first.View.Visible)

	sendEvent(t, conn, inbound{Type: chart.EventPointerDown, X: yearX(t, "2001")})
	aff := next(t, conn)
	assert.Equal(t, msgAffordance, aff.Type)
	assert.Equal(t, "suppress", aff.Action)
	dragging := next(t, conn)
	assert.Equal(t, chart.StateDragging, dragging.View.State)
	assert.NotNil(t, dragging.View.Band)

	sendEvent(t, conn, inbound{Type: chart.EventPointerUp, X: yearX(t, "2003")})
	aff = next(t, conn)
	assert.Equal(t, "restore", aff.Action)
	zoomed := next(t, conn)
	assert.Equal(t, chart.StateZoomed, zoomed.View.State)
	require.NotNil(t, zoomed.View.Domain)
	assert.Equal(t, *yearX(t, "2001"), zoomed.View.Domain.Min)
	assert.Equal(t, *yearX(t, "2003"), zoomed.View.Domain.Max)
	assert.Equal(t, 3, zoomed.View.Visible)

	sendEvent(t, conn, inbound{Type: chart.EventDoubleClick})
	reset := next(t, conn)
	assert.Equal(t, chart.StateIdle, reset.View.State)
	assert.Nil(t, reset.View.Domain)
	assert.Equal(t, 5, reset.View.Visible)
}

func TestChartSessionSettingsAndSource(t *testing.T) {
	conn := dial(t, startServer(t), "provider=wb&dataset=GDP&scale=raw")
	first := next(t, conn)
	assert.Equal(t, "raw", first.View.Scale.Mode)

	sendEvent(t, conn, inbound{Type: msgScale, Scale: "million"})
	m := next(t, conn)
	assert.Equal(t, "m", m.View.Scale.Mode)

	digits := 0
	sendEvent(t, conn, inbound{Type: msgDigits, Digits: &digits})
	m = next(t, conn)
	require.NotEmpty(t, m.View.Ticks)
	assert.NotContains(t, m.View.Ticks[0].Label, ".")

	sendEvent(t, conn, inbound{Type: msgSource, Dataset: "CPI"})
	m = next(t, conn)
	assert.Equal(t, "worldbank:CPI", m.View.SeriesID)

	diff1, none := "diff1", "none"
	sendEvent(t, conn, inbound{Type: msgSource, Transform: &diff1})
	m = next(t, conn)
	assert.Equal(t, "worldbank:CPI:diff1", m.View.SeriesID)

	sendEvent(t, conn, inbound{Type: msgSource, Country: "fra"})
	m = next(t, conn)
	assert.Equal(t, "worldbank:CPI:diff1", m.View.SeriesID, "omitted transform is kept")

	sendEvent(t, conn, inbound{Type: msgSource, Transform: &none})
	m = next(t, conn)
	assert.Equal(t, "worldbank:CPI", m.View.SeriesID)

	sendEvent(t, conn, inbound{Type: msgSource, Provider: "imf"})
	m = next(t, conn)
	assert.Equal(t, msgError, m.Type)
	assert.Contains(t, m.Error, "unsupported provider")

	sendEvent(t, conn, inbound{Type: "wheel"})
	m = next(t, conn)
	assert.Equal(t, msgError, m.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	m = next(t, conn)
	assert.Equal(t, "malformed message", m.Error)
}

func TestChartSessionLoadErrorsBeforeUpgrade(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/api/chart/ws?provider=imf&dataset=GDP")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "unsupported provider")

	resp2, err := http.Get(srv.URL + "/api/chart/ws?provider=wb&dataset=GDP&scale=huge")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
