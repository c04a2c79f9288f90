package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrRateLimited is surfaced when the upstream reports error-limiting
// (HTTP 420/429). The client applies no waiting policy itself; callers decide
// how to back off.
var ErrRateLimited = errors.New("esi: rate limited")

// StatusError is returned for any other non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("esi: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client provides typed access to the public ESI market endpoints.
// Reference lookups (types, groups) are cached per instance.
type Client struct {
	client  *resty.Client
	baseURL string
	cache   *responseCache
}

// Option configures a Client.
type Option func(*Client)

// WithCacheTTL overrides the reference-lookup cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache.ttl = ttl
	}
}

// WithClock injects the cache clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.cache.now = now
	}
}

func NewClient(baseURL, userAgent string, opts ...Option) *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "application/json")

	c := &Client{
		client:  client,
		baseURL: baseURL,
		cache:   newResponseCache(24*time.Hour, time.Now),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs one GET with a single immediate retry on 5xx and maps
// rate-limit statuses to ErrRateLimited.
func (c *Client) get(ctx context.Context, url string, params map[string]string) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err = c.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(url)
		if err != nil {
			return nil, fmt.Errorf("esi: request failed: %w", err)
		}
		if resp.StatusCode() >= 500 {
			continue
		}
		break
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return resp, nil
	case code == http.StatusTooManyRequests || code == 420:
		return nil, ErrRateLimited
	default:
		return nil, &StatusError{StatusCode: code, URL: url}
	}
}

// MarketOrders fetches one page of the region's open order book and returns
// the total page count from the X-Pages header. A missing or garbled header
// is treated as a malformed response.
func (c *Client) MarketOrders(ctx context.Context, regionID int64, page int) ([]MarketOrder, int, error) {
	url := fmt.Sprintf("%s/markets/%d/orders/", c.baseURL, regionID)
	resp, err := c.get(ctx, url, map[string]string{
		"order_type": "all",
		"page":       strconv.Itoa(page),
	})
	if err != nil {
		return nil, 0, err
	}

	totalPages, err := strconv.Atoi(resp.Header().Get("X-Pages"))
	if err != nil || totalPages < 1 {
		return nil, 0, fmt.Errorf("esi: missing or invalid X-Pages header for region %d page %d", regionID, page)
	}

	var orders []MarketOrder
	if err := json.Unmarshal(resp.Body(), &orders); err != nil {
		return nil, 0, fmt.Errorf("esi: malformed order page for region %d page %d: %w", regionID, page, err)
	}
	return orders, totalPages, nil
}

// TypeInfo fetches type metadata, served from cache when fresh.
func (c *Client) TypeInfo(ctx context.Context, typeID int64) (*TypeInfo, error) {
	key := fmt.Sprintf("type:%d", typeID)
	if v, ok := c.cache.get(key); ok {
		return v.(*TypeInfo), nil
	}

	url := fmt.Sprintf("%s/universe/types/%d/", c.baseURL, typeID)
	resp, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var info TypeInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("esi: malformed type payload for %d: %w", typeID, err)
	}
	if info.Name == "" {
		return nil, fmt.Errorf("esi: type payload for %d missing name", typeID)
	}
	if info.TypeID == 0 {
		info.TypeID = typeID
	}
	c.cache.set(key, &info)
	return &info, nil
}

// GroupInfo fetches group metadata (including the category id), served from
// cache when fresh.
func (c *Client) GroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error) {
	key := fmt.Sprintf("group:%d", groupID)
	if v, ok := c.cache.get(key); ok {
		return v.(*GroupInfo), nil
	}

	url := fmt.Sprintf("%s/universe/groups/%d/", c.baseURL, groupID)
	resp, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var info GroupInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("esi: malformed group payload for %d: %w", groupID, err)
	}
	c.cache.set(key, &info)
	return &info, nil
}

// MarketHistory fetches the daily aggregate series (roughly one year) for one
// type in one region. Not cached; each backfill observation is fetched fresh.
func (c *Client) MarketHistory(ctx context.Context, regionID, typeID int64) ([]HistoryDay, error) {
	url := fmt.Sprintf("%s/markets/%d/history/", c.baseURL, regionID)
	resp, err := c.get(ctx, url, map[string]string{
		"type_id": strconv.FormatInt(typeID, 10),
	})
	if err != nil {
		return nil, err
	}

	var days []HistoryDay
	if err := json.Unmarshal(resp.Body(), &days); err != nil {
		return nil, fmt.Errorf("esi: malformed history payload for type %d region %d: %w", typeID, regionID, err)
	}
	return days, nil
}
