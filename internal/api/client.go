package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/tejusbharadwaj/airhist/internal/models"
)

var (
	ErrRequest = errors.New("error making API request")
	ErrStatus  = errors.New("error status from API")
	ErrDecode  = errors.New("malformed API response")
)

// Config configures a Client.
type Config struct {
	URL       string
	Key       string
	RateLimit float64 // requests per second
	RateBurst int
	Timeout   time.Duration
	CacheSize int // sensor metadata entries, one per sensor and segment
}

// Client reads sensor metadata and historical readings from the remote
// API. It is safe for concurrent use; all requests share one rate limiter.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	limiter *rate.Limiter
	meta    *lru.Cache
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("api url is required")
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.Key,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		meta:    cache,
	}, nil
}

type sensorResponse struct {
	Sensor struct {
		ID           int         `json:"id"`
		Latitude     json.Number `json:"latitude"`
		Longitude    json.Number `json:"longitude"`
		LocationType string      `json:"location_type"`
		Name         string      `json:"name"`
		Hardware     any         `json:"hardware"`
		Model        string      `json:"model"`
	} `json:"sensor"`
}

type directoryResponse struct {
	SensorIDs []int `json:"sensor_ids"`
}

type historyResponse struct {
	Fields []string            `json:"fields"`
	Data   [][]json.RawMessage `json:"data"`
}

// metaKey identifies one metadata fetch. Metadata is fetched again for
// every segment so that the attributes written last are those of the last
// segment retrieved.
type metaKey struct {
	id         int
	start, end int64
}

// Sensor returns the metadata of a sensing unit as seen while retrieving
// seg. Results are cached per sensor and segment.
func (c *Client) Sensor(ctx context.Context, id int, seg models.Segment) (models.SensorMeta, error) {
	key := metaKey{id: id, start: seg.Start.Unix(), end: seg.End.Unix()}
	if v, ok := c.meta.Get(key); ok {
		return v.(models.SensorMeta), nil
	}

	var resp sensorResponse
	if err := c.get(ctx, fmt.Sprintf("/sensors/%d", id), nil, &resp); err != nil {
		return models.SensorMeta{}, err
	}

	lat, _ := resp.Sensor.Latitude.Float64()
	lon, _ := resp.Sensor.Longitude.Float64()
	meta := models.SensorMeta{
		ID:           id,
		Lat:          lat,
		Lon:          lon,
		LocationType: resp.Sensor.LocationType,
		Name:         resp.Sensor.Name,
		Model:        resp.Sensor.Model,
	}
	// hardware arrives either as a string or as a list of components
	switch hw := resp.Sensor.Hardware.(type) {
	case nil:
	case string:
		meta.Hardware = hw
	default:
		meta.Hardware = fmt.Sprint(hw)
	}

	c.meta.Add(key, meta)
	return meta, nil
}

// SensorIDs lists the sensors of a region.
func (c *Client) SensorIDs(ctx context.Context, state string) ([]int, error) {
	var resp directoryResponse
	if err := c.get(ctx, "/sensors", url.Values{"state": {state}}, &resp); err != nil {
		return nil, err
	}
	return resp.SensorIDs, nil
}

// History returns the readings of one channel and lineage of a sensor
// within seg.
func (c *Client) History(ctx context.Context, id int, ch models.Channel, l models.Lineage, seg models.Segment) (models.Table, error) {
	q := url.Values{
		"channel": {channelParam(ch)},
		"lineage": {l.String()},
		"start":   {seg.Start.UTC().Format(time.RFC3339)},
		"end":     {seg.End.UTC().Format(time.RFC3339)},
	}
	var resp historyResponse
	if err := c.get(ctx, fmt.Sprintf("/sensors/%d/history", id), q, &resp); err != nil {
		return models.Table{}, err
	}
	return decodeHistory(resp)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: got %d for %s", ErrStatus, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func channelParam(ch models.Channel) string {
	if ch == models.ChannelB {
		return "b"
	}
	return "a"
}

// decodeHistory converts a response into a Table. The first field must be
// the created_at timestamp. Numbers may arrive as JSON numbers or as
// numeric strings; null and unparseable readings become NaN.
func decodeHistory(resp historyResponse) (models.Table, error) {
	if len(resp.Fields) == 0 {
		if len(resp.Data) == 0 {
			return models.Table{}, nil
		}
		return models.Table{}, fmt.Errorf("%w: rows without fields", ErrDecode)
	}
	if resp.Fields[0] != "created_at" {
		return models.Table{}, fmt.Errorf("%w: first field is %q, want created_at", ErrDecode, resp.Fields[0])
	}

	t := models.Table{Time: make([]time.Time, 0, len(resp.Data))}
	cols := make([]models.Column, len(resp.Fields)-1)
	for i, name := range resp.Fields[1:] {
		cols[i] = models.Column{Name: name, Values: make([]float64, 0, len(resp.Data))}
	}

	for r, row := range resp.Data {
		if len(row) != len(resp.Fields) {
			return models.Table{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrDecode, r, len(row), len(resp.Fields))
		}
		ts, err := decodeTime(row[0])
		if err != nil {
			return models.Table{}, fmt.Errorf("%w: row %d: %v", ErrDecode, r, err)
		}
		t.Time = append(t.Time, ts)
		for i := range cols {
			cols[i].Values = append(cols[i].Values, decodeFloat(row[i+1]))
		}
	}
	t.Columns = cols
	return t, nil
}

func decodeTime(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.Parse(time.RFC3339, s)
	}
	var sec float64
	if err := json.Unmarshal(raw, &sec); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}

func decodeFloat(raw json.RawMessage) float64 {
	if string(raw) == "null" {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return math.NaN()
}
