package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tether/internal/logging"
	"tether/internal/types"
)

const (
	defaultRequestTimeout   = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

var ErrHandshakeTimeout = errors.New("handshake timed out")

type Options struct {
	Username string
	Password string
	// Timeout bounds ordinary request/response calls. Chat sends and the
	// event stream are bounded only by their context.
	Timeout time.Duration
	Logger  logging.Logger
}

// Client is the request-capable handle bound to one server address.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	stream   *http.Client
	logger   logging.Logger
}

type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "request failed"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("request failed (%s %s): %s", e.Method, e.Path, msg)
}

// HandshakeError reports a failed initial connection to Address.
type HandshakeError struct {
	Address string
	Timeout time.Duration
	Err     error
}

func (e *HandshakeError) Error() string {
	if errors.Is(e.Err, ErrHandshakeTimeout) {
		return fmt.Sprintf("could not reach %s: no response within %s", e.Address, e.Timeout)
	}
	return fmt.Sprintf("could not reach %s: %v", e.Address, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// NormalizeAddress turns a user-entered address ("10.0.0.2:4096",
// "http://host:4096/") into a base URL.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("server address is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server address: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid server address scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid server address: %s", raw)
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}

func New(address string, opts Options) (*Client, error) {
	baseURL, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	transport := http.DefaultTransport
	return &Client{
		baseURL:  baseURL,
		username: strings.TrimSpace(opts.Username),
		password: strings.TrimSpace(opts.Password),
		http:     &http.Client{Timeout: timeout, Transport: transport},
		stream:   &http.Client{Transport: transport},
		logger:   logging.OrNop(opts.Logger).With(logging.F("component", "client")),
	}, nil
}

// Handshake lists sessions on address and returns a handle once the server
// answers. No answer within timeout fails with ErrHandshakeTimeout.
func Handshake(ctx context.Context, address string, timeout time.Duration, opts Options) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	c, err := New(address, opts)
	if err != nil {
		return nil, &HandshakeError{Address: strings.TrimSpace(address), Timeout: timeout, Err: err}
	}
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if _, err := c.ListSessions(hsCtx); err != nil {
		if errors.Is(hsCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrHandshakeTimeout
		}
		c.logger.Warn("handshake failed", logging.F("address", c.baseURL), logging.Err(err))
		return nil, &HandshakeError{Address: c.baseURL, Timeout: timeout, Err: err}
	}
	c.logger.Info("handshake ok", logging.F("address", c.baseURL), logging.F("dur", time.Since(start)))
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListSessions(ctx context.Context) ([]types.Session, error) {
	var sessions []types.Session
	if err := c.doJSON(ctx, http.MethodGet, "/session", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	path, err := sessionPath(sessionID, "")
	if err != nil {
		return nil, err
	}
	var session types.Session
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]types.MessageWithParts, error) {
	path, err := sessionPath(sessionID, "/message")
	if err != nil {
		return nil, err
	}
	var messages []types.MessageWithParts
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a chat turn. The server answers once the assistant reply
// is complete, so the call is bounded only by ctx.
func (c *Client) SendMessage(ctx context.Context, sessionID string, req ChatRequest) error {
	path, err := sessionPath(sessionID, "/message")
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.ProviderID) == "" || strings.TrimSpace(req.ModelID) == "" {
		return errors.New("provider and model are required")
	}
	if len(req.Parts) == 0 {
		return errors.New("at least one part is required")
	}
	return c.doJSONWithClient(ctx, http.MethodPost, path, req, nil, c.stream)
}

func (c *Client) AbortSession(ctx context.Context, sessionID string) (bool, error) {
	path, err := sessionPath(sessionID, "/abort")
	if err != nil {
		return false, err
	}
	var ok bool
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{}, &ok); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, err
	}
	return ok, nil
}

func (c *Client) ListProviders(ctx context.Context) (*ProviderCatalog, error) {
	var payload providersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/config/providers", nil, &payload); err != nil {
		return nil, err
	}
	return payload.catalog(), nil
}

func sessionPath(sessionID, suffix string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	return "/session/" + url.PathEscape(sessionID) + suffix, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	return c.doJSONWithClient(ctx, method, path, body, out, c.http)
}

func (c *Client) doJSONWithClient(ctx context.Context, method, path string, body any, out any, httpClient *http.Client) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRequestError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.password != "" {
		username := c.username
		if username == "" {
			username = "opencode"
		}
		req.SetBasicAuth(username, c.password)
	}
}

func decodeRequestError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &structured) == nil {
		if m := strings.TrimSpace(structured.Message); m != "" {
			msg = m
		} else if m := strings.TrimSpace(structured.Error); m != "" {
			msg = m
		}
	}
	if msg == "" {
		msg = resp.Status
	}
	return &RequestError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}
