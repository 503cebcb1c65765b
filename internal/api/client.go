package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"hostdesk/internal/metrics"
	"hostdesk/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is an HTTP client for the reservations API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis       *redis.Client
	cacheTTL    time.Duration
	cachePrefix string

	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *zerolog.Logger
}

// Error is returned when the API answers with a non-2xx status.
// Message carries the API's {"error": "..."} text when present.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http %d", e.Status)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// NewClient constructs a client for baseURL. A zero timeout means 10 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		cachePrefix: "hostdesk",
		log:         logger,
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
// FinishReservation drops cached entries.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration, prefix string) {
	c.redis = redisClient
	c.cacheTTL = ttl
	if prefix != "" {
		c.cachePrefix = prefix
	}
}

// UseRateLimit throttles outgoing requests to rps with the given burst.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UseMetrics records request durations and cache results.
func (c *Client) UseMetrics(m *metrics.Metrics) {
	c.metrics = m
}

type listReservationsResponse struct {
	Data []models.Reservation `json:"data"`
}

type listTablesResponse struct {
	Data []models.Table `json:"data"`
}

// ListReservations fetches reservations for date (YYYY-MM-DD) in API order.
func (c *Client) ListReservations(ctx context.Context, date string) ([]models.Reservation, error) {
	endpoint := fmt.Sprintf("%s/reservations?date=%s", c.baseURL, url.QueryEscape(date))
	cacheKey := c.key("reservations", date)
	var resp listReservationsResponse

	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, "reservations", endpoint, &resp); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	reservations := resp.Data
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	for i := range reservations {
		reservations[i].Normalize()
	}
	return reservations, nil
}

// ListTables fetches all tables.
func (c *Client) ListTables(ctx context.Context) ([]models.Table, error) {
	endpoint := fmt.Sprintf("%s/tables", c.baseURL)
	cacheKey := c.key("tables")
	var resp listTablesResponse

	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, "tables", endpoint, &resp); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	if resp.Data == nil {
		return []models.Table{}, nil
	}
	return resp.Data, nil
}

// FinishReservation frees tableID, completing its seated reservation.
func (c *Client) FinishReservation(ctx context.Context, tableID int64) error {
	endpoint := fmt.Sprintf("%s/tables/%d/seat", c.baseURL, tableID)
	req, err := c.newRequest(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if err := c.do(req, "finish", nil); err != nil {
		return err
	}
	c.invalidateCache(ctx)
	return nil
}

// HealthCheck checks that the reservations API answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/tables", c.baseURL)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) key(parts ...string) string {
	k := c.cachePrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		c.metrics.IncCache("miss")
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		c.metrics.IncCache("miss")
		return false
	}
	c.metrics.IncCache("hit")
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("api cache write failed")
	}
}

// invalidateCache drops the tables entry and every per-date reservations entry.
func (c *Client) invalidateCache(ctx context.Context) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	keys := []string{c.key("tables")}
	iter := c.redis.Scan(ctx, 0, c.key("reservations", "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Msg("api cache scan failed")
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Msg("api cache invalidation failed")
	}
}

func (c *Client) doGet(ctx context.Context, name, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(req, name, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	return req, nil
}

func (c *Client) do(req *http.Request, name string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPI(name, "error", time.Since(start).Seconds())
		return err
	}
	defer resp.Body.Close()
	c.metrics.ObserveAPI(name, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
