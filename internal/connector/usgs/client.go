// Package usgs implements the SourceConnector against the USGS
// instantaneous-values web service.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/connector"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
	logger "github.com/cascadiahydro/streamsync/internal/support/logger"
)

const moduleName = "USGSClient"

// Client fetches observations from the USGS instantaneous-values service.
type Client struct {
	cfg    config.SourceConfig
	client *http.Client
}

// NewClient creates a Client from the source configuration. The HTTP timeout
// defaults to 30 seconds when the configuration leaves it unset.
func NewClient(cfg config.SourceConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchObservations implements connector.SourceConnector. The service treats
// endDT as inclusive, so points at or past the window end are filtered out
// after decoding. IngestedAt is left for the ingesting job to stamp.
func (c *Client) FetchObservations(ctx context.Context, siteID string, start, end time.Time) ([]model.Observation, error) {
	requestURL := c.buildURL(siteID, start, end)

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, exception.NewSyncError(moduleName, "Failed to create fetch request", err, false, false)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, exception.NewTransientFetchError(moduleName, fmt.Sprintf("Fetch for site %s failed", siteID), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		bodyString := strings.TrimSpace(string(bodyBytes))
		errMsg := fmt.Sprintf("Error response from source: Status code %d, Body: %s", resp.StatusCode, bodyString)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, exception.NewNotFoundError(moduleName, fmt.Sprintf("Site %s is unknown to the source", siteID), errors.New(bodyString))
		case resp.StatusCode >= 500:
			return nil, exception.NewTransientFetchError(moduleName, errMsg, errors.New(bodyString))
		default:
			return nil, exception.NewMalformedResponseError(moduleName, errMsg, errors.New(bodyString))
		}
	}

	var payload instantaneousValuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, exception.NewMalformedResponseError(moduleName, "Failed to decode source response", err)
	}

	observations, err := flatten(&payload, siteID, start, end)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Fetched %d observations for site %s in [%s, %s).",
		len(observations), siteID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	return observations, nil
}

func (c *Client) buildURL(siteID string, start, end time.Time) string {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("sites", siteID)
	params.Set("startDT", start.UTC().Format(time.RFC3339))
	params.Set("endDT", end.UTC().Format(time.RFC3339))
	params.Set("parameterCd", c.cfg.ParameterCd)
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/?" + params.Encode()
}

// flatten converts the WaterML payload into observations, dropping no-data
// points and anything outside the half-open window. Timestamps are normalized
// to UTC.
func flatten(payload *instantaneousValuesResponse, siteID string, start, end time.Time) ([]model.Observation, error) {
	observations := make([]model.Observation, 0)

	for _, series := range payload.Value.TimeSeries {
		seriesSiteID := siteID
		if len(series.SourceInfo.SiteCode) > 0 && series.SourceInfo.SiteCode[0].Value != "" {
			seriesSiteID = series.SourceInfo.SiteCode[0].Value
		}

		for _, block := range series.Values {
			for _, point := range block.Value {
				timestamp, err := time.Parse(time.RFC3339, point.DateTime)
				if err != nil {
					return nil, exception.NewMalformedResponseError(moduleName,
						fmt.Sprintf("Unparseable observation time %q for site %s", point.DateTime, seriesSiteID), err)
				}

				value, err := strconv.ParseFloat(point.Value, 64)
				if err != nil {
					return nil, exception.NewMalformedResponseError(moduleName,
						fmt.Sprintf("Unparseable observation value %q for site %s", point.Value, seriesSiteID), err)
				}
				if series.Variable.NoDataValue != 0 && value == series.Variable.NoDataValue {
					continue
				}

				timestamp = timestamp.UTC()
				if timestamp.Before(start) || !timestamp.Before(end) {
					continue
				}

				observations = append(observations, model.Observation{
					SiteID:    seriesSiteID,
					Timestamp: timestamp,
					Value:     value,
					Quality:   strings.Join(point.Qualifiers, ","),
				})
			}
		}
	}

	return observations, nil
}

var _ connector.SourceConnector = (*Client)(nil)
