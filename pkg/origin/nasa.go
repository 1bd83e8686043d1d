// Package origin talks to the NASA Mars Rover Photos API.
package origin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/roverlens/marsphotos/pkg/retrieval"
	"github.com/roverlens/marsphotos/pkg/storage"
)

const (
	DefaultBaseURL = "https://api.nasa.gov/mars-photos/api/v1"
	DefaultAPIKey  = "DEMO_KEY"
	DefaultTimeout = 15 * time.Second

	maxBodyBytes   = 8 << 20
	maxDetailBytes = 512
)

// Config holds the origin API settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns the public API endpoint with the shared demo key.
func DefaultConfig() Config {
	return Config{
		APIKey:  DefaultAPIKey,
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// photosResponse is the subset of the rover photos payload we read.
type photosResponse struct {
	Photos []json.RawMessage `json:"photos"`
}

type photoItem struct {
	ID        int64  `json:"id"`
	Sol       int    `json:"sol"`
	EarthDate string `json:"earth_date"`
	ImgSrc    string `json:"img_src"`
	Camera    struct {
		Name string `json:"name"`
	} `json:"camera"`
}

// Client fetches photo metadata for a normalized query. It makes a single
// attempt per call.
type Client struct {
	config     Config
	httpClient *http.Client
	deadLetter DeadLetter
	logger     *zap.Logger
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Timeout is left untouched;
// the per-call deadline comes from Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDeadLetter routes malformed items to dl.
func WithDeadLetter(dl DeadLetter) Option {
	return func(c *Client) { c.deadLetter = dl }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client, filling unset config values from DefaultConfig.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.APIKey == "" {
		cfg.APIKey = def.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{},
		deadLetter: NoopDeadLetter{},
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch requests one page of photos for q. Items without an id or image URL
// are skipped and dead-lettered; transport, status and decoding failures are
// returned as origin errors.
func (c *Client) Fetch(ctx context.Context, q retrieval.Query) ([]storage.ImageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.photosURL(q), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(stripURL(err), errors.CodeInternal, "build nasa request")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting nasa photos",
		zap.String("rover", q.Rover),
		zap.Int("page", q.Page))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err, q.Rover)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
		e := errors.Newf(retrieval.CodeOrigin, "nasa api returned status %d", resp.StatusCode)
		return nil, errors.WithContextMap(e, map[string]interface{}{
			"status": resp.StatusCode,
			"detail": strings.TrimSpace(string(detail)),
			"rover":  q.Rover,
		})
	}

	var payload photosResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return nil, transportError(ctx, err, q.Rover)
		}
		return nil, errors.WithContext(
			errors.Wrap(err, retrieval.CodeOrigin, "decode nasa response"), "rover", q.Rover)
	}

	return c.records(ctx, q, payload.Photos), nil
}

func (c *Client) records(ctx context.Context, q retrieval.Query, items []json.RawMessage) []storage.ImageRecord {
	fetchedAt := c.now().UTC()
	records := make([]storage.ImageRecord, 0, len(items))
	for i, raw := range items {
		var item photoItem
		if err := json.Unmarshal(raw, &item); err != nil || item.ID == 0 || item.ImgSrc == "" {
			c.logger.Warn("skipping malformed nasa photo",
				zap.String("rover", q.Rover),
				zap.Int("index", i),
				zap.NamedError("decode_error", err))
			if err := c.deadLetter.Publish(ctx, q.Rover, raw, ReasonMalformedRecord); err != nil {
				c.logger.Error("dead-letter publish failed", zap.Error(err))
			}
			continue
		}
		records = append(records, storage.ImageRecord{
			Rover:      q.Rover,
			Sol:        q.Sol,
			EarthDate:  q.EarthDate,
			Camera:     strings.ToUpper(item.Camera.Name),
			ExternalID: item.ID,
			ImageURL:   item.ImgSrc,
			Page:       q.Page,
			FetchedAt:  fetchedAt,
		})
	}
	return records
}

// photosURL builds the request URL. Only one of sol and earth_date is sent.
func (c *Client) photosURL(q retrieval.Query) string {
	params := url.Values{}
	if q.Sol != nil {
		params.Set("sol", strconv.Itoa(*q.Sol))
	} else {
		params.Set("earth_date", q.EarthDate)
	}
	if q.Camera != "" {
		params.Set("camera", strings.ToUpper(q.Camera))
	}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("api_key", c.config.APIKey)

	return fmt.Sprintf("%s/rovers/%s/photos?%s", c.config.BaseURL, url.PathEscape(q.Rover), params.Encode())
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, err error, rover string) error {
	code := retrieval.CodeOrigin
	msg := "nasa request failed"
	if ctx.Err() == context.DeadlineExceeded {
		code = retrieval.CodeTimeout
		msg = "nasa request timed out"
	}
	return errors.WithContext(errors.Wrap(stripURL(err), code, msg), "rover", rover)
}

// stripURL drops the *url.Error wrapper, whose message carries the request
// URL and with it the API key.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
