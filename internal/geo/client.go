// Package geo wraps the two upstream lookups the schedule depends on:
// IP geolocation and daylight times. Lookups are single-attempt and
// best-effort; every failure is logged and collapsed into a nil result so the
// caller's fallback chain can take over.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultGeoIPURL    = "http://ip-api.com/json"
	defaultDaylightURL = "https://api.sunrise-sunset.org/json"
	defaultHTTPTimeout = 10 * time.Second
)

// Geolocation is the result of one IP lookup. OffsetSeconds is the only part
// that outlives the request (as the persisted cachedTimezoneOffset).
type Geolocation struct {
	Latitude      float64
	Longitude     float64
	Timezone      string
	OffsetSeconds int
}

// DaylightTimes holds the upstream's 12-hour clock strings for one day at one
// coordinate ("6:45:00 AM" style), unparsed.
type DaylightTimes struct {
	Sunrise            string
	Sunset             string
	CivilTwilightBegin string
	CivilTwilightEnd   string
}

// Client performs the upstream lookups.
type Client struct {
	httpClient  *http.Client
	geoIPURL    string
	daylightURL string
	timeout     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithGeoIPURL overrides the IP geolocation endpoint (tests).
func WithGeoIPURL(u string) Option {
	return func(c *Client) { c.geoIPURL = u }
}

// WithDaylightURL overrides the daylight-times endpoint (tests).
func WithDaylightURL(u string) Option {
	return func(c *Client) { c.daylightURL = u }
}

// NewClient creates an upstream lookup client.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	c := &Client{
		httpClient:  &http.Client{},
		geoIPURL:    defaultGeoIPURL,
		daylightURL: defaultDaylightURL,
		timeout:     timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// geoIPResponse is the ip-api.com JSON shape.
type geoIPResponse struct {
	Status   string   `json:"status"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Timezone string   `json:"timezone"`
	Offset   *int     `json:"offset"`
}

// LookupGeolocation resolves an IP to coordinates, IANA timezone name and UTC
// offset. Returns nil on network failure, non-success upstream status or
// missing required fields. No retry.
func (c *Client) LookupGeolocation(ctx context.Context, ip string) *Geolocation {
	apiURL := fmt.Sprintf("%s/%s?fields=status,lat,lon,timezone,offset", c.geoIPURL, url.PathEscape(ip))

	var parsed geoIPResponse
	if !c.fetchJSON(ctx, apiURL, &parsed) {
		return nil
	}

	if parsed.Status != "success" {
		log.Warn().Str("ip", ip).Str("status", parsed.Status).Msg("Geolocation lookup returned non-success status")
		return nil
	}
	if parsed.Lat == nil || parsed.Lon == nil || parsed.Timezone == "" || parsed.Offset == nil {
		log.Warn().Str("ip", ip).Msg("Geolocation response is missing required fields")
		return nil
	}

	loc := &Geolocation{
		Latitude:      *parsed.Lat,
		Longitude:     *parsed.Lon,
		Timezone:      parsed.Timezone,
		OffsetSeconds: *parsed.Offset,
	}

	log.Debug().
		Str("ip", ip).
		Float64("lat", loc.Latitude).
		Float64("lon", loc.Longitude).
		Str("timezone", loc.Timezone).
		Int("offset", loc.OffsetSeconds).
		Msg("Geolocation resolved")

	return loc
}

// daylightResponse is the sunrise-sunset.org JSON shape.
type daylightResponse struct {
	Status  string `json:"status"`
	Results struct {
		Sunrise            string `json:"sunrise"`
		Sunset             string `json:"sunset"`
		CivilTwilightBegin string `json:"civil_twilight_begin"`
		CivilTwilightEnd   string `json:"civil_twilight_end"`
	} `json:"results"`
}

// LookupDaylightTimes fetches sunrise/sunset/civil-twilight clocks for a
// coordinate, expressed in the named timezone. Same failure contract as
// LookupGeolocation.
func (c *Client) LookupDaylightTimes(ctx context.Context, lat, lon float64, timezone string) *DaylightTimes {
	apiURL := fmt.Sprintf("%s?lat=%f&lng=%f&tzid=%s", c.daylightURL, lat, lon, url.QueryEscape(timezone))

	var parsed daylightResponse
	if !c.fetchJSON(ctx, apiURL, &parsed) {
		return nil
	}

	if parsed.Status != "OK" {
		log.Warn().Str("status", parsed.Status).Msg("Daylight lookup returned non-success status")
		return nil
	}
	r := parsed.Results
	if r.Sunrise == "" || r.Sunset == "" || r.CivilTwilightBegin == "" || r.CivilTwilightEnd == "" {
		log.Warn().Msg("Daylight response is missing required fields")
		return nil
	}

	times := &DaylightTimes{
		Sunrise:            r.Sunrise,
		Sunset:             r.Sunset,
		CivilTwilightBegin: r.CivilTwilightBegin,
		CivilTwilightEnd:   r.CivilTwilightEnd,
	}

	log.Debug().
		Str("sunrise", times.Sunrise).
		Str("sunset", times.Sunset).
		Msg("Daylight times resolved")

	return times
}

// fetchJSON performs one GET bounded by the client timeout and decodes the
// body into out. Returns false on any failure.
func (c *Client) fetchJSON(ctx context.Context, apiURL string, out any) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to build upstream request")
		return false
	}
	req.Header.Set("User-Agent", "duskd/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Upstream request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Upstream request returned non-OK status")
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read upstream response")
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Warn().Err(err).Msg("Failed to parse upstream response")
		return false
	}
	return true
}
