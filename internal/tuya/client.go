package tuya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds one cloud account's connection settings.
type Config struct {
	// Name identifies the source in logs, merge records, and
	// arbitration counters ("openapi", "sharing").
	Name string

	// BaseURL is the regional API endpoint, e.g.
	// https://openapi.tuyaeu.com.
	BaseURL string

	// ClientID and Secret are the project credentials.
	ClientID string
	Secret   string

	// UID selects the sharing flavour: when set, devices are listed
	// through the app-account endpoints and the local-strategy table
	// is fetched per device. Empty means IoT-platform OpenAPI.
	UID string

	// Timeout bounds every HTTP round trip.
	Timeout time.Duration

	// Workers caps concurrent per-device specification fetches.
	Workers int
}

// DefaultWorkers is the specification-fetch concurrency used when the
// config leaves Workers unset.
const DefaultWorkers = 9

// Client is a signed HTTP client for one Tuya cloud account.
//
// Token state is managed internally; all exported methods are safe for
// concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger Logger

	mu           sync.Mutex
	token        string
	refreshToken string
	tokenExpiry  time.Time
}

// NewClient creates a client for one account. Timeout defaults to 30s
// and Workers to DefaultWorkers when unset.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Name returns the source name this client was configured with.
func (c *Client) Name() string {
	return c.cfg.Name
}

// ensureToken acquires or refreshes the access token. Caller must not
// hold c.mu.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	path := "/v1.0/token"
	query := "grant_type=1"
	if c.refreshToken != "" {
		path = "/v1.0/token/" + c.refreshToken
		query = ""
	}

	var result tokenResult
	err := c.request(ctx, http.MethodGet, path, query, nil, "", &result)
	if err != nil && c.refreshToken != "" {
		// A stale refresh token falls back to a fresh grant once.
		c.refreshToken = ""
		err = c.request(ctx, http.MethodGet, "/v1.0/token", "grant_type=1", nil, "", &result)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	c.token = result.AccessToken
	c.refreshToken = result.RefreshToken
	// Tuya reports expiry in seconds; renew a minute early.
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpireTime)*time.Second - time.Minute)
	c.logger.Debug("token refreshed", "source", c.cfg.Name, "uid", result.UID)
	return c.token, nil
}

// do performs one signed business request and unmarshals the result
// payload into out (which may be nil).
func (c *Client) do(ctx context.Context, method, path, query string, body any, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	return c.request(ctx, method, path, query, body, token, out)
}

// request signs and performs one HTTP round trip. token is empty for
// token acquisition.
func (c *Client) request(ctx context.Context, method, path, query string, body any, token string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	url := c.cfg.BaseURL + path
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	t := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := uuid.NewString()
	canonical := stringToSign(method, path, query, payload)

	req.Header.Set("client_id", c.cfg.ClientID)
	req.Header.Set("sign", sign(c.cfg.ClientID, c.cfg.Secret, token, t, nonce, canonical))
	req.Header.Set("sign_method", "HMAC-SHA256")
	req.Header.Set("t", t)
	req.Header.Set("nonce", nonce)
	if token != "" {
		req.Header.Set("access_token", token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !envelope.Success {
		if envelope.Code == 1106 || envelope.Code == 2009 {
			return fmt.Errorf("%w: code %d: %s", ErrDeviceNotFound, envelope.Code, envelope.Msg)
		}
		return fmt.Errorf("%w: code %d: %s", ErrRequestFailed, envelope.Code, envelope.Msg)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}

// Devices lists the account's devices. The OpenAPI flavour pages
// through /v1.3/iot-03/devices; the sharing flavour lists through the
// app account's user id in one call.
func (c *Client) Devices(ctx context.Context) ([]DeviceModel, error) {
	if c.cfg.UID != "" {
		var list []DeviceModel
		path := fmt.Sprintf("/v1.0/users/%s/devices", c.cfg.UID)
		if err := c.do(ctx, http.MethodGet, path, "", nil, &list); err != nil {
			return nil, fmt.Errorf("listing devices: %w", err)
		}
		return list, nil
	}

	var all []DeviceModel
	lastID := ""
	for {
		query := "page_size=100"
		if lastID != "" {
			query += "&last_id=" + lastID
		}
		var page deviceListResult
		if err := c.do(ctx, http.MethodGet, "/v1.3/iot-03/devices", query, nil, &page); err != nil {
			return nil, fmt.Errorf("listing devices: %w", err)
		}
		all = append(all, page.List...)
		if !page.HasMore || len(page.List) == 0 {
			break
		}
		lastID = page.List[len(page.List)-1].ID
	}
	return all, nil
}

// Device fetches one device's model. Both flavours serve the classic
// single-device endpoint.
func (c *Client) Device(ctx context.Context, deviceID string) (DeviceModel, error) {
	var model DeviceModel
	path := fmt.Sprintf("/v1.0/devices/%s", deviceID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &model); err != nil {
		return DeviceModel{}, fmt.Errorf("fetching device %s: %w", deviceID, err)
	}
	return model, nil
}

// FetchDevice fetches one device and enriches it the same way FetchAll
// enriches a listing: specification always, strategy table for the
// sharing flavour. Unlike FetchAll, a failed specification fetch is an
// error; the caller asked for this one device.
func (c *Client) FetchDevice(ctx context.Context, deviceID string) (*point.Device, error) {
	model, err := c.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	spec, err := c.Specification(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	strategy, err := c.LocalStrategy(ctx, deviceID)
	if err != nil {
		c.logger.Warn("device strategy fetch failed, continuing without",
			"source", c.cfg.Name, "device", deviceID, "error", err)
	}
	return ConvertDevice(model, spec, strategy, c.cfg.Name), nil
}

// Specification fetches one device's function and status-range
// descriptors.
func (c *Client) Specification(ctx context.Context, deviceID string) (*SpecificationResult, error) {
	var result SpecificationResult
	path := fmt.Sprintf("/v1.2/iot-03/devices/%s/specification", deviceID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &result); err != nil {
		return nil, fmt.Errorf("fetching specification for %s: %w", deviceID, err)
	}
	return &result, nil
}

// LocalStrategy fetches the sharing API's data-point strategy table
// for one device. The OpenAPI flavour has no such table and returns
// an empty slice.
func (c *Client) LocalStrategy(ctx context.Context, deviceID string) ([]DPStatusRelation, error) {
	if c.cfg.UID == "" {
		return nil, nil
	}
	var result strategyResult
	path := "/v1.1/m/life/ha/device/detail"
	query := "devId=" + deviceID
	if err := c.do(ctx, http.MethodGet, path, query, nil, &result); err != nil {
		return nil, fmt.Errorf("fetching strategy for %s: %w", deviceID, err)
	}
	return result.DPStatusRelations, nil
}

// SendCommands issues a plain command batch to one device.
func (c *Client) SendCommands(ctx context.Context, deviceID string, commands []Command) error {
	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/commands", deviceID)
	if err := c.do(ctx, http.MethodPost, path, "", commandsBody{Commands: commands}, nil); err != nil {
		return fmt.Errorf("sending commands to %s: %w", deviceID, err)
	}
	return nil
}

// SendPropertyUpdate issues a shadow-property write to one device.
func (c *Client) SendPropertyUpdate(ctx context.Context, deviceID string, properties map[string]any) error {
	encoded, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}
	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/shadow/properties/issue", deviceID)
	if err := c.do(ctx, http.MethodPost, path, "", propertiesBody{Properties: string(encoded)}, nil); err != nil {
		return fmt.Errorf("updating properties of %s: %w", deviceID, err)
	}
	return nil
}

// FetchAll lists the account's devices and enriches each with its
// specification and, for the sharing flavour, its strategy table.
// Per-device enrichment runs concurrently, capped at cfg.Workers; a
// device whose enrichment fails is skipped with a warning rather than
// failing the whole fetch.
func (c *Client) FetchAll(ctx context.Context) ([]*point.Device, error) {
	models, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]*point.Device, len(models))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i := range models {
		i := i
		g.Go(func() error {
			model := models[i]
			spec, err := c.Specification(ctx, model.ID)
			if err != nil {
				c.logger.Warn("skipping device: specification fetch failed",
					"source", c.cfg.Name, "device", model.ID, "error", err)
				return nil
			}
			strategy, err := c.LocalStrategy(ctx, model.ID)
			if err != nil {
				c.logger.Warn("device strategy fetch failed, continuing without",
					"source", c.cfg.Name, "device", model.ID, "error", err)
			}
			devices[i] = ConvertDevice(model, spec, strategy, c.cfg.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*point.Device, 0, len(devices))
	for _, d := range devices {
		if d != nil {
			out = append(out, d)
		}
	}
	c.logger.Info("device fetch complete",
		"source", c.cfg.Name, "listed", len(models), "converted", len(out))
	return out, nil
}
