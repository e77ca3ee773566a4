package replication

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	HeaderSignature = "X-Transformd-Signature"
	HeaderTimestamp = "X-Transformd-Timestamp"
	HeaderAction    = "X-Transformd-Action"
	HeaderPath      = "X-Transformd-Path"
)

// Request is the body posted to an agent's transport URI.
type Request struct {
	Action    Action    `json:"action"`
	Path      string    `json:"path"`
	Initiator string    `json:"initiator,omitempty"`
	Time      time.Time `json:"time"`
}

type Transport interface {
	Deliver(ctx context.Context, agent Agent, req Request) error
}

type HTTPConfig struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type HTTPTransport struct {
	httpClient     *http.Client
	maxAttempts    uint
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 1 * time.Second
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxAttempts:    uint(maxAttempts),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

func (t *HTTPTransport) Deliver(ctx context.Context, agent Agent, req Request) error {
	endpoint := strings.TrimSpace(agent.TransportURI)
	if endpoint == "" {
		return fmt.Errorf("agent %s has no transport uri", agent.ID)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal replication request: %w", err)
	}

	timestamp := strconv.FormatInt(req.Time.UTC().Unix(), 10)
	signature := sign(agent.TransportSecret, timestamp, body)

	if agent.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, agent.Timeout)
		defer cancel()
	}

	err = retry.Do(
		func() error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("build replication request: %w", err))
			}

			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set(HeaderTimestamp, timestamp)
			httpReq.Header.Set(HeaderSignature, signature)
			httpReq.Header.Set(HeaderAction, string(req.Action))
			httpReq.Header.Set(HeaderPath, req.Path)
			if agent.TransportUser != "" {
				httpReq.SetBasicAuth(agent.TransportUser, agent.TransportSecret)
			}

			resp, err := t.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			return classifyStatus(resp.StatusCode)
		},
		retry.Context(ctx),
		retry.Attempts(t.maxAttempts),
		retry.Delay(t.initialBackoff),
		retry.MaxDelay(t.maxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("replicate %s to agent %s: %w", req.Path, agent.ID, err)
	}
	return nil
}

var errClientStatus = errors.New("agent rejected request")

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("agent returned status=%d", code)
	default:
		return retry.Unrecoverable(fmt.Errorf("%w: status=%d", errClientStatus, code))
	}
}

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced for body at timestamp.
func VerifySignature(secret, timestamp, signature string, body []byte) bool {
	return hmac.Equal([]byte(sign(secret, timestamp, body)), []byte(signature))
}
