package bls

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/service/upstream"
	xhttp "MacroPull/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, key string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, APIKey: key}, upstream.NewBase(ProviderName, xhttp.NewClient()))
	c.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

const monthlyPayload = `{"status":"REQUEST_SUCCEEDED","message":[],"Results":{"series":[{"seriesID":"LNS14000000","data":[
	{"year":"2024","period":"M02","value":"3.9"},
	{"year":"2024","period":"M01","value":"3.7"},
	{"year":"2023","period":"M13","value":"3.6"},
	{"year":"2023","period":"M12","value":"-"}
]}]}}`

func TestFetchSeriesMonthlyViaGet(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/LNS14000000", r.URL.Path)
		assert.Equal(t, "2005", r.URL.Query().Get("startyear"))
		assert.Equal(t, "2024", r.URL.Query().Get("endyear"))
		assert.Equal(t, "secret", r.URL.Query().Get("registrationkey"))
		_, _ = w.Write([]byte(monthlyPayload))
	})

	s, err := c.FetchSeries(context.Background(), "lns14000000", "")
	require.NoError(t, err)
	assert.Equal(t, "bls:LNS14000000", s.ID)
	assert.Equal(t, models.FrequencyMonthly, s.Frequency)
	require.Len(t, s.Points, 3)
	assert.Equal(t, "2023-12", s.Points[0].Time)
	assert.Nil(t, s.Points[0].Value, "unparsable value stays as a null point")
	assert.Equal(t, "2024-01", s.Points[1].Time)
	assert.Equal(t, 3.9, *s.Points[2].Value)
}

func TestFetchSeriesAnnualAverageFallback(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_SUCCEEDED","Results":{"series":[{"seriesID":"X","data":[
			{"year":"2020","period":"M13","value":"3.5"},
			{"year":"2020","period":"Q01","value":"9.9"}
		]}]}}`))
	})

	s, err := c.FetchSeries(context.Background(), "X", "")
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	assert.Equal(t, "2020-12", s.Points[0].Time)
	assert.Equal(t, 3.5, *s.Points[0].Value)
	assert.Equal(t, "annual-average", s.Meta["degraded"])
}

func TestFetchSeriesAnnualAverageWhenMonthlyUnreported(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"REQUEST_SUCCEEDED","Results":{"series":[{"seriesID":"X","data":[
			{"year":"2020","period":"M02","value":"-"},
			{"year":"2020","period":"M01","value":"-"},
			{"year":"2020","period":"M13","value":"3.5"}
		]}]}}`))
	})

	s, err := c.FetchSeries(context.Background(), "X", "")
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	assert.Equal(t, "2020-12", s.Points[0].Time)
	assert.Equal(t, 3.5, *s.Points[0].Value)
	assert.Equal(t, "annual-average", s.Meta["degraded"])
	assert.Equal(t, int32(1), calls.Load(), "GET result is usable, POST is not tried")
}

func TestFetchSeriesFallsBackToPost(t *testing.T) {
	var posts int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		atomic.AddInt32(&posts, 1)
		raw, _ := io.ReadAll(r.Body)
		var p postPayload
		assert.NoError(t, json.Unmarshal(raw, &p))
		assert.Equal(t, []string{"LNS14000000"}, p.SeriesID)
		assert.Equal(t, "2015", p.StartYear)
		_, _ = w.Write([]byte(monthlyPayload))
	})

	s, err := c.FetchSeries(context.Background(), "LNS14000000", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts))
	assert.Len(t, s.Points, 3)
}

func TestFetchSeriesEmbeddedFailureMessage(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_NOT_PROCESSED","message":["daily threshold reached"],"Results":{}}`))
	})

	_, err := c.FetchSeries(context.Background(), "X", "")
	var up *models.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Contains(t, up.BodyExcerpt, "daily threshold reached")
	assert.True(t, models.IsRecoverable(err))
}

func TestFetchSeriesEmptyOnBothPaths(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_SUCCEEDED","Results":{"series":[{"seriesID":"X","data":[]}]}}`))
	})

	_, err := c.FetchSeries(context.Background(), "X", "")
	var empty *models.EmptyResultError
	require.True(t, errors.As(err, &empty))
}
