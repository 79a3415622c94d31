package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nfdrepairs/repair-ops/internal/logger"
	"github.com/nfdrepairs/repair-ops/internal/metrics"
	"github.com/nfdrepairs/repair-ops/internal/model"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

// PushPayload is the JSON body delivered to each subscription endpoint.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	JobID string `json:"job_id,omitempty"`
}

type PushResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

// PushBroadcaster fans a payload out to all stored subscriptions
// concurrently. One failed subscription never fails the batch; an endpoint
// answering 410 Gone is deleted as a side effect.
type PushBroadcaster struct {
	subs   repository.NotificationsRepository
	client *http.Client
}

func NewPushBroadcaster(subs repository.NotificationsRepository, timeoutMs int) *PushBroadcaster {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	return &PushBroadcaster{
		subs:   subs,
		client: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

func (b *PushBroadcaster) Broadcast(ctx context.Context, p PushPayload) (PushResult, error) {
	subs, err := b.subs.ListPushSubscriptions(ctx)
	if err != nil {
		return PushResult{}, err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return PushResult{}, err
	}

	var (
		mu  sync.Mutex
		res PushResult
		wg  sync.WaitGroup
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub model.PushSubscription) {
			defer wg.Done()
			status, err := b.pushOne(ctx, sub, body)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && status/100 == 2:
				res.Sent++
				metrics.PushTotal.WithLabelValues("sent").Inc()
			case status == http.StatusGone:
				res.Failed++
				res.Removed++
				metrics.PushTotal.WithLabelValues("gone").Inc()
				if derr := b.subs.DeletePushSubscription(ctx, sub.ID); derr != nil {
					logger.Log.Warn("delete gone push subscription",
						zap.Int64("subscription_id", sub.ID), zap.Error(derr))
				}
			default:
				res.Failed++
				metrics.PushTotal.WithLabelValues("failed").Inc()
				logger.Log.Warn("push send failed",
					zap.Int64("subscription_id", sub.ID), zap.Int("status", status), zap.Error(err))
			}
		}(sub)
	}
	wg.Wait()

	return res, nil
}

// pushOne returns the HTTP status (0 on transport error).
func (b *PushBroadcaster) pushOne(ctx context.Context, sub model.PushSubscription, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", "86400")

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
