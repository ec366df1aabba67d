// Package fr24 is a small client for the Flightradar24 API, used to resolve
// callsigns to flight numbers and routes.
package fr24

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// BaseURL is the production API root.
const BaseURL = "https://fr24api.flightradar24.com/api"

// minRequestDelay is the minimum spacing between requests.
const minRequestDelay = time.Second

// rateLimitBackoff is how long a 429 pauses the client.
const rateLimitBackoff = 60 * time.Second

// Flight is the route information resolved for one callsign.
type Flight struct {
	Callsign     string
	FlightNumber string
	AircraftType string
	Registration string
	Origin       string
	Destination  string
	Airline      string
	Route        string
}

// Client queries the Flightradar24 live flight positions API. Lookups fail
// soft: network trouble, rate limits, and auth errors all come back as a nil
// flight, and auth errors latch the client off so the monitor can keep
// running on heuristics alone.
type Client struct {
	BaseURL    string
	Token      string
	UseSandbox bool
	HTTP       *http.Client

	// Sleep is replaceable in tests.
	Sleep func(time.Duration)

	lastRequest time.Time
	available   *bool // nil = untested, false = latched off
}

// NewClient creates a client with the given bearer token.
func NewClient(token string) *Client {
	return &Client{
		BaseURL: BaseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Sleep:   time.Sleep,
	}
}

// Available reports whether the API responded successfully at least once and
// has not been latched off by an auth error.
func (c *Client) Available() bool {
	return c.available != nil && *c.available
}

func (c *Client) setAvailable(v bool) {
	c.available = &v
}

func (c *Client) rateLimit() {
	if elapsed := time.Since(c.lastRequest); elapsed < minRequestDelay {
		c.Sleep(minRequestDelay - elapsed)
	}
	c.lastRequest = time.Now()
}

// request performs one GET against endpoint. Returns nil with no error for
// every recoverable failure.
func (c *Client) request(ctx context.Context, endpoint string, params url.Values) (map[string]json.RawMessage, error) {
	if c.available != nil && !*c.available {
		return nil, nil
	}

	c.rateLimit()

	u := c.BaseURL + "/" + endpoint
	if c.UseSandbox {
		u = c.BaseURL + "/sandbox/" + endpoint
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "v1")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("User-Agent", "ADSB-Logger/1.0")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("fr24 request failed")
		return nil, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through
	case resp.StatusCode == http.StatusTooManyRequests:
		logrus.Warn("fr24 rate limited, backing off 60s")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.Sleep(rateLimitBackoff)
		return nil, nil
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden:
		if c.available == nil {
			logrus.WithField("status", resp.StatusCode).
				Warn("fr24 API unavailable, falling back to heuristic flight numbers")
			c.setAvailable(false)
		}
		return nil, nil
	default:
		logrus.WithField("status", resp.StatusCode).Warn("fr24 unexpected status")
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.WithError(err).Warn("fr24 body read failed")
		return nil, nil
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		logrus.WithError(err).Warn("fr24 response parse failed")
		return nil, nil
	}
	return out, nil
}

// liveFlight mirrors the flat structure of the live positions endpoint.
type liveFlight struct {
	Flight      string `json:"flight"`
	Type        string `json:"type"`
	Reg         string `json:"reg"`
	OrigIATA    string `json:"orig_iata"`
	DestIATA    string `json:"dest_iata"`
	OperatingAs string `json:"operating_as"`
}

// LookupCallsign resolves one callsign via the live positions endpoint.
// Returns nil when the flight is not currently airborne or the API is
// unavailable.
func (c *Client) LookupCallsign(ctx context.Context, callsign string) (*Flight, error) {
	callsign = strings.ToUpper(strings.TrimSpace(callsign))

	data, err := c.request(ctx, "live/flight-positions/full", url.Values{"callsigns": {callsign}})
	if err != nil || data == nil {
		return nil, err
	}

	raw, ok := data["data"]
	if !ok {
		return nil, nil
	}
	var flights []liveFlight
	if err := json.Unmarshal(raw, &flights); err != nil || len(flights) == 0 {
		return nil, nil
	}

	f := flights[0]
	out := &Flight{
		Callsign:     callsign,
		FlightNumber: f.Flight,
		AircraftType: f.Type,
		Registration: f.Reg,
		Origin:       f.OrigIATA,
		Destination:  f.DestIATA,
		Airline:      f.OperatingAs,
	}
	if out.Origin != "" && out.Destination != "" {
		out.Route = out.Origin + "-" + out.Destination
	}
	return out, nil
}

// TestConnection probes the API with a known active callsign and records
// availability.
func (c *Client) TestConnection(ctx context.Context) bool {
	data, err := c.request(ctx, "live/flight-positions/full", url.Values{"callsigns": {"UAE1"}})
	if err == nil && data != nil {
		if _, ok := data["data"]; ok {
			logrus.Info("fr24 API connection successful")
			c.setAvailable(true)
			return true
		}
	}
	c.setAvailable(false)
	return false
}

// FlightNumber converts a callsign to an airline flight number using the
// known prefix patterns (UAE123 -> EK123, FDB123 -> FZ123). Only pure
// numeric suffixes convert; letter suffixes mark positioning or ferry
// flights and return "".
func FlightNumber(callsign string) string {
	callsign = strings.ToUpper(strings.TrimSpace(callsign))

	convert := func(prefix, iata string) string {
		suffix := strings.TrimLeft(callsign[len(prefix):], "0")
		if suffix == "" {
			return ""
		}
		for _, r := range suffix {
			if r < '0' || r > '9' {
				return ""
			}
		}
		return iata + suffix
	}

	switch {
	case strings.HasPrefix(callsign, "UAE"):
		return convert("UAE", "EK")
	case strings.HasPrefix(callsign, "FDB"):
		return convert("FDB", "FZ")
	}
	return ""
}
