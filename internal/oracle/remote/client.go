// Package remote submits randomness requests to an external oracle service
// over HTTP. The service calls back on the raffle's fulfilment endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vrfraffle/internal/oracle"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 16

// Client implements oracle.Coordinator against POST {baseURL}/v1/requests.
type Client struct {
	baseURL     string
	callbackURL string
	httpClient  *http.Client
	breaker     *circuit.Breaker
	logger      *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBreaker replaces the default breaker guarding the oracle endpoint.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func New(baseURL, callbackURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     circuit.New("oracle"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestBody struct {
	KeyHash                     string `json:"key_hash"`
	SubscriptionID              uint64 `json:"subscription_id"`
	MinimumRequestConfirmations uint16 `json:"minimum_request_confirmations"`
	CallbackGasLimit            uint32 `json:"callback_gas_limit"`
	NumWords                    uint32 `json:"num_words"`
	Consumer                    string `json:"consumer"`
	CallbackURL                 string `json:"callback_url"`
}

type responseBody struct {
	RequestID string `json:"request_id"`
}

func (c *Client) RequestRandomWords(ctx context.Context, req oracle.Request) (oracle.RequestID, error) {
	payload, err := json.Marshal(requestBody{
		KeyHash:                     req.KeyHash.Hex(),
		SubscriptionID:              req.SubscriptionID,
		MinimumRequestConfirmations: req.MinimumRequestConfirmations,
		CallbackGasLimit:            req.CallbackGasLimit,
		NumWords:                    req.NumWords,
		Consumer:                    req.Consumer.Hex(),
		CallbackURL:                 c.callbackURL,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode oracle request")
	}

	if !c.breaker.Allow() {
		return "", dErrors.New(dErrors.CodeUnavailable, "oracle circuit open")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/requests", bytes.NewReader(payload))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to build oracle request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", dErrors.Wrap(err, dErrors.CodeTimeout, "oracle request cancelled")
		}
		c.recordFailure(ctx, err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "oracle unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recordFailure(ctx, err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read oracle response")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx, fmt.Errorf("oracle returned status %d", resp.StatusCode))
	} else {
		c.recordSuccess(ctx)
	}
	return parseRequestResponse(resp.StatusCode, body)
}

func (c *Client) recordFailure(ctx context.Context, err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "oracle circuit opened", "breaker", c.breaker.Name(), "error", err)
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
		c.logger.InfoContext(ctx, "oracle circuit closed", "breaker", c.breaker.Name())
	}
}

func parseRequestResponse(status int, body []byte) (oracle.RequestID, error) {
	if status < 200 || status >= 300 {
		return "", dErrors.Wrap(fmt.Errorf("oracle returned status %d", status), dErrors.CodeUnavailable, "oracle rejected request")
	}
	var out responseBody
	if err := json.Unmarshal(body, &out); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed oracle response")
	}
	id, err := domain.ParseRequestID(out.RequestID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "oracle returned an invalid request id")
	}
	return id, nil
}
