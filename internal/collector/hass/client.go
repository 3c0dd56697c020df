// Package hass reads the area, device and entity registries over the Home Assistant websocket API.
package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
	"github.com/mcronce/hass-event-collector/internal/collector/metadata"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultRedialAttempts = 3

	areaRegistryList   = "config/area_registry/list"
	deviceRegistryList = "config/device_registry/list"
	entityRegistryList = "config/entity_registry/list"
)

var ErrAuthFailed = errors.New("home assistant authentication failed")

// Error is a failed command result reported by Home Assistant. The connection is still usable after one.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("home assistant error %s: %s", e.Code, e.Message)
}

type request struct {
	ID          int    `json:"id,omitempty"`
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

type response struct {
	ID      int             `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	// Set on auth_invalid
	Message string `json:"message"`
	// Set on auth_required and auth_ok
	Version string `json:"ha_version"`
}

// Client is a metadata.Fetcher. Commands are serialized over a single connection, which is redialled when it
// breaks.
type Client struct {
	url            string
	token          string
	timeout        time.Duration
	redialAttempts uint
	redialDelay    time.Duration
	dialer         *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int
}

// URL builds the websocket API endpoint for a Home Assistant instance.
func URL(host string, port uint16, secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   host + ":" + strconv.Itoa(int(port)),
		Path:   "/api/websocket",
	}
	return u.String()
}

func NewClient(config configuration.HassConfig) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:            URL(config.Host, config.Port, config.Secure),
		token:          config.Token,
		timeout:        timeout,
		redialAttempts: DefaultRedialAttempts,
		redialDelay:    time.Second,
		dialer:         &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// Dial creates a client and connects it, so bad credentials are reported at startup.
func Dial(ctx context.Context, config configuration.HassConfig) (*Client, error) {
	c := NewClient(config)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Areas(ctx context.Context) ([]metadata.Area, error) {
	var areas []metadata.Area
	err := c.command(ctx, areaRegistryList, &areas)
	return areas, err
}

func (c *Client) Devices(ctx context.Context) ([]metadata.Device, error) {
	var devices []metadata.Device
	err := c.command(ctx, deviceRegistryList, &devices)
	return devices, err
}

func (c *Client) Entities(ctx context.Context) ([]metadata.Entity, error) {
	var entities []metadata.Entity
	err := c.command(ctx, entityRegistryList, &entities)
	return entities, err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return errors.WithStack(err)
}

// command sends one command and decodes its result into out. A transport failure gets one retry on a fresh
// connection; an error result from Home Assistant is returned as is.
func (c *Client) command(ctx context.Context, commandType string, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.redial(ctx); err != nil {
			return err
		}
	}
	err := c.roundTrip(ctx, commandType, out)
	var haErr *Error
	if err == nil || errors.As(err, &haErr) {
		return err
	}
	c.dropConn()
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	log.WithError(err).WithField("command", commandType).Warn("Home Assistant connection failed; redialling")
	if err := c.redial(ctx); err != nil {
		return err
	}
	return c.roundTrip(ctx, commandType, out)
}

func (c *Client) redial(ctx context.Context) error {
	return retry.Do(
		func() error { return c.connect(ctx) },
		retry.Context(ctx),
		retry.Attempts(c.redialAttempts),
		retry.Delay(c.redialDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, ErrAuthFailed) }),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("Dial attempt %d to %s failed", n+1, c.url)
		}),
	)
}

// connect dials and authenticates. Must be called with mu held.
func (c *Client) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, _, err := c.dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return errors.Wrapf(err, "dialling %s", c.url)
	}
	if err := c.authenticate(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}
	c.conn = conn
	c.nextID = 1
	return nil
}

func (c *Client) authenticate(ctx context.Context, conn *websocket.Conn) error {
	var res response
	if err := c.read(ctx, conn, &res); err != nil {
		return errors.WithMessage(err, "waiting for auth_required")
	}
	if res.Type != "auth_required" {
		return errors.Errorf("expected auth_required, got %q", res.Type)
	}
	if err := c.write(ctx, conn, request{Type: "auth", AccessToken: c.token}); err != nil {
		return errors.WithMessage(err, "sending auth")
	}
	if err := c.read(ctx, conn, &res); err != nil {
		return errors.WithMessage(err, "waiting for auth result")
	}
	switch res.Type {
	case "auth_ok":
		log.WithField("version", res.Version).Infof("Authenticated with Home Assistant at %s", c.url)
		return nil
	case "auth_invalid":
		return errors.WithMessage(ErrAuthFailed, res.Message)
	default:
		return errors.Errorf("unexpected auth response %q", res.Type)
	}
}

func (c *Client) roundTrip(ctx context.Context, commandType string, out interface{}) error {
	id := c.nextID
	c.nextID++
	if err := c.write(ctx, c.conn, request{ID: id, Type: commandType}); err != nil {
		return errors.WithMessagef(err, "sending %s", commandType)
	}
	for {
		var res response
		if err := c.read(ctx, c.conn, &res); err != nil {
			return errors.WithMessagef(err, "waiting for %s result", commandType)
		}
		// Anything else on the connection belongs to no command we are waiting for.
		if res.Type != "result" || res.ID != id {
			continue
		}
		if !res.Success {
			if res.Error == nil {
				return &Error{Code: "unknown", Message: commandType + " failed"}
			}
			return res.Error
		}
		return errors.Wrapf(json.Unmarshal(res.Result, out), "decoding %s result", commandType)
	}
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, req request) error {
	if err := conn.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(conn.WriteJSON(req))
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn, res *response) error {
	if err := conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return errors.WithStack(err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()
	*res = response{}
	if err := conn.ReadJSON(res); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ctxDeadline, ok := ctx.Deadline(); ok && !time.Now().Before(ctxDeadline) {
			return context.DeadlineExceeded
		}
		return errors.WithStack(err)
	}
	return nil
}

func (c *Client) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
