// Package weather pulls current conditions from wttr.in for the
// weather-break pipeline.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://wttr.in"

// Report is the subset of wttr.in's j1 payload the station reads on air.
type Report struct {
	City       string
	TempC      int
	FeelsLikeC int
	Condition  string
	Humidity   int
	WindKmph   int
	Fetched    time.Time
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type j1Response struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		FeelsLikeC  string `json:"FeelsLikeC"`
		Humidity    string `json:"humidity"`
		WindKmph    string `json:"windspeedKmph"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

// Current fetches conditions for city. Any transport, status, or shape
// problem is an error; the caller decides whether the break is skipped.
func (c *Client) Current(ctx context.Context, city string) (*Report, error) {
	if city == "" {
		return nil, fmt.Errorf("weather: city not configured")
	}
	u := c.baseURL + "/" + url.PathEscape(city) + "?format=j1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: wttr.in status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var payload j1Response
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	if len(payload.CurrentCondition) == 0 {
		return nil, fmt.Errorf("weather: empty current_condition")
	}

	cc := payload.CurrentCondition[0]
	rep := &Report{
		City:       city,
		TempC:      atoiSafe(cc.TempC),
		FeelsLikeC: atoiSafe(cc.FeelsLikeC),
		Humidity:   atoiSafe(cc.Humidity),
		WindKmph:   atoiSafe(cc.WindKmph),
		Fetched:    time.Now(),
	}
	if len(cc.WeatherDesc) > 0 {
		rep.Condition = cc.WeatherDesc[0].Value
	}
	return rep, nil
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
