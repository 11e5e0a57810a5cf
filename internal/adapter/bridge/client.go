package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/observability/telemetry"
	"github.com/gridwatt/csms-core/internal/ports"
)

// Client relays remote commands to the device bridge over HTTP. Transport
// failures surface as ErrBridgeUnreachable, non-2xx answers as
// ErrBridgeError; neither mutates local state.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) ports.BridgeClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "device-bridge",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Bridge circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
		log:     log,
	}
}

func (c *Client) RemoteStartTransaction(ctx context.Context, identifier, idTag string, connectorID int) (map[string]interface{}, error) {
	return c.send(ctx, "RemoteStartTransaction", map[string]interface{}{
		"cpId":        identifier,
		"idTag":       idTag,
		"connectorId": connectorID,
	})
}

func (c *Client) RemoteStopTransaction(ctx context.Context, identifier string, transactionID int) (map[string]interface{}, error) {
	return c.send(ctx, "RemoteStopTransaction", map[string]interface{}{
		"cpId":          identifier,
		"transactionId": transactionID,
	})
}

func (c *Client) send(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{
		"command": command,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		telemetry.BridgeRequestsTotal.WithLabelValues(command, "error").Inc()
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.ErrBridgeUnreachable
		}
		return nil, err
	}

	telemetry.BridgeRequestsTotal.WithLabelValues(command, "ok").Inc()
	return result.(map[string]interface{}), nil
}

func (c *Client) post(ctx context.Context, body []byte) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/bridge/commands", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Bridge request failed", zap.Error(err))
		return nil, domain.ErrBridgeUnreachable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrBridgeUnreachable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Bridge returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return nil, domain.ErrBridgeError
	}

	out := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, domain.ErrBridgeError
		}
	}
	return out, nil
}
