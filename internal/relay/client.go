package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender is the outbound SMS collaborator. Actual delivery happens in an
// external webhook relay; this side only sees the HTTP status code.
type Sender interface {
	Send(ctx context.Context, webhookURL, phone, message string) error
}

// Client POSTs {phone, message} to the configured relay webhook. A small
// circuit breaker sheds sends while the relay is down so a dead relay does
// not stall request handlers on timeouts.
type Client struct {
	client *http.Client
	br     *breaker
}

var ErrRelayUnavailable = fmt.Errorf("sms relay unavailable")

func NewClient(timeoutMs int) *Client {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	return &Client{
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:     newBreaker(3, 15*time.Second),
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (c *Client) Send(ctx context.Context, webhookURL, phone, message string) error {
	if !c.br.TryAcquire() {
		return ErrRelayUnavailable
	}
	if err := c.post(ctx, webhookURL, phone, message); err != nil {
		c.br.OnFailure()
		return err
	}
	c.br.OnSuccess()
	return nil
}

func (c *Client) post(ctx context.Context, webhookURL, phone, message string) error {
	b, _ := json.Marshal(sendRequest{Phone: phone, Message: message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("relay status=%d", res.StatusCode)
	}
	return nil
}
