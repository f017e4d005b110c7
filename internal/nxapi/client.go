package nxapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/muurk/nxqos/internal/logging"
	"github.com/muurk/nxqos/internal/version"
)

const (
	// DefaultPort is the NX-API HTTPS port.
	DefaultPort = 443

	// DefaultTimeout bounds every management-plane request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry ceiling for retryable failures.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial backoff delay.
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff.
	DefaultMaxRetryDelay = 30 * time.Second

	// DefaultMaxInflight caps concurrent requests against one device's
	// management plane.
	DefaultMaxInflight = 4
)

// Config holds the connection parameters for one device binding. It is
// supplied by the caller (registry, flags, environment); this package
// never loads configuration itself.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// VerifyTLS enables certificate verification. Lab switches commonly
	// run self-signed certificates, so this is an explicit opt-in.
	VerifyTLS bool

	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// BatchSize limits how many commands travel in one HTTP request.
	// Zero sends the whole sequence in a single batch. Batch boundaries
	// are a transport knob only; program order is preserved regardless.
	BatchSize int

	// MaxInflight caps concurrent requests to this device. Zero uses
	// DefaultMaxInflight.
	MaxInflight int
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if c.MaxInflight == 0 {
		c.MaxInflight = DefaultMaxInflight
	}
	return c
}

// Client executes command batches against one device's JSON-RPC endpoint.
// A Client is owned by its device binding and is safe for concurrent use;
// an internal semaphore caps in-flight requests to the management plane.
type Client struct {
	cfg      Config
	endpoint string

	httpClient *http.Client
	inflight   *semaphore.Weighted
}

// NewClient creates a client for a device binding.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	endpoint := fmt.Sprintf("https://%s:%d/ins", cfg.Host, cfg.Port)
	return newClient(cfg, endpoint)
}

// NewClientWithURL creates a client against a full endpoint URL. Intended
// for tests and for devices running NX-API on plain HTTP.
func NewClientWithURL(endpoint string, cfg Config) *Client {
	return newClient(cfg.withDefaults(), endpoint)
}

func newClient(cfg Config, endpoint string) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
	}
	return &Client{
		cfg:      cfg,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		inflight: semaphore.NewWeighted(int64(cfg.MaxInflight)),
	}
}

// Host returns the device host this client is bound to.
func (c *Client) Host() string {
	return c.cfg.Host
}

// CommandResult is the outcome of one command within a batch.
type CommandResult struct {
	Command string
	// Executed reports whether the device ran the command. Commands after
	// a rejected one in the same apply are never executed.
	Executed bool
	// Response is the device's result payload for executed commands.
	Response json.RawMessage
	// Err is set on the rejected command only.
	Err *DeviceError
}

// Ping performs a lightweight read-only probe ("show version") and
// reports whether the device management plane is reachable and willing.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Show(ctx, "show version")
	return err
}

// Show executes a single read-only command and returns its structured
// result payload. Reads have no side effects, so every retryable failure
// is retried with backoff up to the configured ceiling.
func (c *Client) Show(ctx context.Context, command string) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.withRetry(ctx, IsRetryable, func() error {
		responses, err := c.exchange(ctx, MethodShow, []string{command})
		if err != nil {
			return err
		}
		if responses[0].Error != nil {
			return NewRejectionError(command, responses[0].Error.Code, responses[0].Error.detail())
		}
		result = responses[0].Result
		return nil
	})
	return result, err
}

// ShowText executes a read-only command and returns its plain-text output.
func (c *Client) ShowText(ctx context.Context, command string) (string, error) {
	var text string
	err := c.withRetry(ctx, IsRetryable, func() error {
		responses, err := c.exchange(ctx, MethodShowASCII, []string{command})
		if err != nil {
			return err
		}
		if responses[0].Error != nil {
			return NewRejectionError(command, responses[0].Error.Code, responses[0].Error.detail())
		}
		var err2 error
		text, err2 = textFromResult(responses[0].Result)
		return err2
	})
	return text, err
}

// RunningConfig fetches the device running configuration, optionally
// restricted to a section understood by the device (e.g. "aclmgr",
// "ipqos").
func (c *Client) RunningConfig(ctx context.Context, section string) (string, error) {
	cmd := "show running-config"
	if section != "" {
		cmd += " " + section
	}
	return c.ShowText(ctx, cmd)
}

// Run submits a configuration command sequence. Commands are delivered in
// program order, split into batches per the BatchSize knob, and the device
// executes them in that order. Execution stops at the first rejected
// command; the returned results mark every command as executed, rejected,
// or never reached. The error mirrors the failure that stopped execution.
//
// Only failures that provably occur before the device could execute
// anything (connection refused, DNS, TLS handshake) are retried; an
// ambiguous timeout is surfaced immediately so the caller can treat the
// batch as suspect and roll back.
func (c *Client) Run(ctx context.Context, commands []string) ([]CommandResult, error) {
	commands = StripNonCommands(commands)

	results := make([]CommandResult, 0, len(commands))
	pending := commands

	for len(pending) > 0 {
		batch := pending
		if c.cfg.BatchSize > 0 && len(batch) > c.cfg.BatchSize {
			batch = batch[:c.cfg.BatchSize]
		}
		pending = pending[len(batch):]

		batchResults, err := c.runBatch(ctx, batch)
		results = append(results, batchResults...)
		if err != nil {
			// Everything after the failure point was never sent.
			for _, cmd := range pending {
				results = append(results, CommandResult{Command: cmd})
			}
			return results, err
		}
	}

	return results, nil
}

func (c *Client) runBatch(ctx context.Context, batch []string) ([]CommandResult, error) {
	var responses []rpcResponse
	err := c.withRetry(ctx, isRetryableForConfigure, func() error {
		var err error
		responses, err = c.exchange(ctx, MethodConfigure, batch)
		return err
	})
	if err != nil {
		// The batch outcome is unknown (or known-failed) as a whole.
		results := make([]CommandResult, len(batch))
		for i, cmd := range batch {
			results[i] = CommandResult{Command: cmd}
		}
		return results, err
	}

	results := make([]CommandResult, len(batch))
	for i, cmd := range batch {
		results[i] = CommandResult{Command: cmd}
		if i >= len(responses) {
			continue
		}
		if rejected := responses[i].Error; rejected != nil {
			devErr := NewRejectionError(cmd, rejected.Code, rejected.detail())
			results[i].Err = devErr
			// The device halts the batch at the first rejection; earlier
			// commands have executed, later ones have not.
			return results, devErr
		}
		results[i].Executed = true
		results[i].Response = responses[i].Result
	}

	// A rejection legitimately truncates the response list; a truncated
	// list without one means commands went unacknowledged.
	if len(responses) < len(batch) {
		devErr := NewProtocolError(fmt.Sprintf(
			"device acknowledged %d of %d commands", len(responses), len(batch)), nil)
		for i := len(responses); i < len(batch); i++ {
			results[i].Err = devErr
		}
		return results, devErr
	}

	return results, nil
}

// exchange performs one HTTP round trip carrying a JSON-RPC batch.
func (c *Client) exchange(ctx context.Context, method Method, commands []string) ([]rpcResponse, error) {
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return nil, classifyTransport(err, c.cfg.Host)
	}
	defer c.inflight.Release(1)

	payload, err := json.Marshal(buildBatch(method, commands))
	if err != nil {
		return nil, NewProtocolError("failed to encode request batch", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, NewProtocolError("failed to build request", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Content-Type", "application/json-rpc")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	logging.LogRPCRequest(c.cfg.Host, string(method), len(commands))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err, c.cfg.Host)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err, c.cfg.Host)
	}

	logging.LogRPCResponse(c.cfg.Host, resp.StatusCode, len(body))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewAuthError(c.cfg.Host)
	}

	// Decode before judging the status line: the JSON-RPC error member is
	// authoritative, and some firmware pairs it with a non-200 status.
	responses, decodeErr := decodeResponses(body, len(commands))
	if decodeErr != nil {
		if resp.StatusCode >= 500 {
			return nil, &DeviceError{
				Type:      ErrTypeTransport,
				Message:   fmt.Sprintf("device returned HTTP %d", resp.StatusCode),
				Host:      c.cfg.Host,
				Code:      resp.StatusCode,
				Retryable: true,
			}
		}
		return nil, NewProtocolError("malformed JSON-RPC response", decodeErr)
	}
	if len(responses) == 0 {
		return nil, NewProtocolError("response carries no results", nil)
	}

	return responses, nil
}

// withRetry runs fn with bounded exponential backoff, retrying only
// failures the predicate accepts.
func (c *Client) withRetry(ctx context.Context, retryable func(error) bool, fn func() error) error {
	delay := c.cfg.RetryDelay

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("retrying device call",
				zap.String("host", c.cfg.Host),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return classifyTransport(ctx.Err(), c.cfg.Host)
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.cfg.MaxRetryDelay {
				delay = c.cfg.MaxRetryDelay
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// textFromResult extracts plain text from a cli_ascii result payload. The
// device wraps it either as {"msg": "..."} or {"body": "..."} depending on
// firmware.
func textFromResult(result json.RawMessage) (string, error) {
	if len(result) == 0 {
		return "", nil
	}

	var wrapped struct {
		Msg  string `json:"msg"`
		Body string `json:"body"`
	}
	if err := json.Unmarshal(result, &wrapped); err == nil {
		if wrapped.Msg != "" {
			return wrapped.Msg, nil
		}
		if wrapped.Body != "" {
			return wrapped.Body, nil
		}
	}

	var plain string
	if err := json.Unmarshal(result, &plain); err == nil {
		return plain, nil
	}

	return "", NewProtocolError("cannot extract text from result payload", nil)
}
