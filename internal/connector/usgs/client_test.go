package usgs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

// scenarioPayload is a trimmed instantaneous-values response for one site.
// It carries one point before the window, two inside, one no-data point and
// one at the window end.
const scenarioPayload = `{
  "value": {
    "timeSeries": [
      {
        "sourceInfo": {
          "siteName": "WILLAMETTE RIVER AT PORTLAND, OR",
          "siteCode": [{"value": "14211720", "network": "NWIS", "agencyCode": "USGS"}]
        },
        "variable": {"noDataValue": -999999},
        "values": [
          {
            "value": [
              {"value": "13650", "qualifiers": ["A"], "dateTime": "2025-03-09T23:45:00.000-08:00"},
              {"value": "13800", "qualifiers": ["P"], "dateTime": "2025-03-10T00:00:00.000-08:00"},
              {"value": "13900", "qualifiers": ["A"], "dateTime": "2025-03-10T00:15:00.000-08:00"},
              {"value": "-999999", "qualifiers": ["P", "e"], "dateTime": "2025-03-10T00:30:00.000-08:00"},
              {"value": "14100", "qualifiers": ["A"], "dateTime": "2025-03-10T01:00:00.000-08:00"}
            ]
          }
        ]
      }
    ]
  }
}`

func newTestClient(baseURL string) *Client {
	return NewClient(config.SourceConfig{
		BaseURL:        baseURL,
		ParameterCd:    "00060",
		TimeoutSeconds: 5,
		UserAgent:      "streamsync-test",
	})
}

func TestFetchObservationsParsesScenarioPayload(t *testing.T) {
	var gotQuery url.Values
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(scenarioPayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	observations, err := client.FetchObservations(context.Background(), "14211720", start, end)
	assert.NoError(t, err)

	// Request shape
	assert.Equal(t, "json", gotQuery.Get("format"))
	assert.Equal(t, "14211720", gotQuery.Get("sites"))
	assert.Equal(t, "00060", gotQuery.Get("parameterCd"))
	assert.Equal(t, "2025-03-10T08:00:00Z", gotQuery.Get("startDT"))
	assert.Equal(t, "2025-03-10T09:00:00Z", gotQuery.Get("endDT"))
	assert.Equal(t, "streamsync-test", gotUserAgent)

	// Only the two in-window measurable points survive: the point before the
	// window, the no-data point and the point at the window end are dropped.
	assert.Len(t, observations, 2)

	assert.Equal(t, "14211720", observations[0].SiteID)
	assert.True(t, observations[0].Timestamp.Equal(start))
	assert.Equal(t, time.UTC, observations[0].Timestamp.Location())
	assert.Equal(t, 13800.0, observations[0].Value)
	assert.Equal(t, "P", observations[0].Quality)

	assert.True(t, observations[1].Timestamp.Equal(start.Add(15*time.Minute)))
	assert.Equal(t, 13900.0, observations[1].Value)
	assert.Equal(t, "A", observations[1].Quality)
}

func TestFetchObservationsEmptyWindowIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": {"timeSeries": []}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	observations, err := client.FetchObservations(context.Background(), "14211720",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.NoError(t, err)
	assert.Empty(t, observations)
}

func TestFetchObservationsServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchObservations(context.Background(), "14211720",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.Error(t, err)
	assert.True(t, exception.IsTransientFetch(err))
}

func TestFetchObservationsNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server.URL)
	_, err := client.FetchObservations(context.Background(), "14211720",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.Error(t, err)
	assert.True(t, exception.IsTransientFetch(err))
}

func TestFetchObservationsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no sites found matching criteria", http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchObservations(context.Background(), "99999999",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.Error(t, err)
	assert.True(t, exception.IsNotFound(err))
	assert.False(t, exception.IsTransientFetch(err))
}

func TestFetchObservationsBadRequestIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "parameterCd is invalid", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchObservations(context.Background(), "14211720",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.Error(t, err)
	assert.True(t, exception.IsMalformedResponse(err))
}

func TestFetchObservationsUndecodableBodyIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchObservations(context.Background(), "14211720",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.Error(t, err)
	assert.True(t, exception.IsMalformedResponse(err))
}

func TestFetchObservationsUnparseableValueIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"value": {"timeSeries": [{
				"sourceInfo": {"siteCode": [{"value": "14211720"}]},
				"variable": {"noDataValue": -999999},
				"values": [{"value": [{"value": "ice", "qualifiers": ["P"], "dateTime": "2025-03-10T08:15:00.000Z"}]}]
			}]}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchObservations(context.Background(), "14211720",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.Error(t, err)
	assert.True(t, exception.IsMalformedResponse(err))
}

func TestBuildURLTrimsTrailingSlash(t *testing.T) {
	client := newTestClient("https://waterservices.usgs.gov/nwis/iv/")
	built := client.buildURL("14211720",
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	parsed, err := url.Parse(built)
	assert.NoError(t, err)
	assert.Equal(t, "/nwis/iv/", parsed.Path)
	assert.Equal(t, "14211720", parsed.Query().Get("sites"))
}
