package worldbank

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/service/upstream"
	xhttp "MacroPull/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Retries: 1}, upstream.NewBase(ProviderName, xhttp.NewClient()))
}

func TestFetchSeriesSortsAscendingAndKeepsNulls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/country/USA/indicator/NY.GDP.MKTP.KD", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`[{"page":1,"pages":1,"per_page":20000,"total":3},[
			{"indicator":{"id":"NY.GDP.MKTP.KD","value":"GDP (constant 2015 US$)"},"country":{"id":"US","value":"United States"},"countryiso3code":"USA","date":"2022","value":2.1e13,"unit":""},
			{"indicator":{"id":"NY.GDP.MKTP.KD","value":"GDP (constant 2015 US$)"},"country":{"id":"US","value":"United States"},"countryiso3code":"USA","date":"2021","value":null,"unit":""},
			{"indicator":{"id":"NY.GDP.MKTP.KD","value":"GDP (constant 2015 US$)"},"country":{"id":"US","value":"United States"},"countryiso3code":"USA","date":"2020","value":1.9e13,"unit":""}
		]]`))
	})

	s, err := c.FetchSeries(context.Background(), "NY.GDP.MKTP.KD", "usa")
	require.NoError(t, err)
	assert.Equal(t, "worldbank:NY.GDP.MKTP.KD:USA", s.ID)
	assert.Equal(t, "GDP (constant 2015 US$) - United States", s.Title)
	assert.Equal(t, models.FrequencyAnnual, s.Frequency)
	require.Len(t, s.Points, 3)
	assert.Equal(t, []string{"2020", "2021", "2022"}, []string{s.Points[0].Time, s.Points[1].Time, s.Points[2].Time})
	assert.Nil(t, s.Points[1].Value)
	assert.Equal(t, 1.9e13, *s.Points[0].Value)
}

func TestFetchSeriesFollowsPages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`[{"page":1,"pages":2},[{"date":"2021","value":2}]]`))
		default:
			_, _ = w.Write([]byte(`[{"page":2,"pages":2},[{"date":"2020","value":1}]]`))
		}
	})

	s, err := c.FetchSeries(context.Background(), "X", "FRA")
	require.NoError(t, err)
	require.Len(t, s.Points, 2)
	assert.Equal(t, "2020", s.Points[0].Time)
}

func TestFetchSeriesRejectsBadShapes(t *testing.T) {
	bodies := map[string]string{
		"api message": `[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`,
		"null rows":   `[{"page":1,"pages":0,"total":0},null]`,
		"object":      `{"rows":[]}`,
		"3 elements":  `[{"page":1,"pages":1,"total":1},[{"date":"2020","value":1}],[]]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.FetchSeries(context.Background(), "X", "USA")
			var pe *models.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}

func TestFetchSeriesUpstreamStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("gateway down"))
	})
	_, err := c.FetchSeries(context.Background(), "X", "USA")
	var up *models.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusBadGateway, up.Status)
	assert.Equal(t, "gateway down", up.BodyExcerpt)
}

func TestFetchSeriesRequiresCountry(t *testing.T) {
	c := New(Config{}, upstream.NewBase(ProviderName, nil))
	_, err := c.FetchSeries(context.Background(), "NY.GDP.MKTP.KD", "")
	var missing *models.MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "country", missing.Param)
}

func TestListCountriesDropsAggregates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/country", r.URL.Path)
		_, _ = w.Write([]byte(`[{"page":1,"pages":1,"per_page":"400","total":4},[
			{"id":"ZAF","name":"South Africa","region":{"id":"SSF","value":"Sub-Saharan Africa"}},
			{"id":"EUU","name":"European Union","region":{"id":"NA","value":"Aggregates"}},
			{"id":"afg","name":"Afghanistan","region":{"id":"SAS","value":"South Asia"}},
			{"id":"XK","name":"Odd","region":{"id":"ECS","value":"Europe"}}
		]]`))
	})

	got, err := c.ListCountries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Country{
		{Code: "AFG", Label: "Afghanistan"},
		{Code: "ZAF", Label: "South Africa"},
	}, got)
}
