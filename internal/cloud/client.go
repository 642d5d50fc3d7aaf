// Package cloud delivers aggregated attendance batches to the remote
// ingestion service with bounded retries.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/gatesync/pkg/models"
)

// StatusError is a non-2xx response from the ingestion service. 4xx
// statuses are client errors and never retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cloud: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode < 400 || e.StatusCode >= 500
}

// Result reports the outcome of one dispatch.
type Result struct {
	Delivered bool
	Count     int
	Attempts  int
	Response  string
}

// Dispatcher posts attendance batches to the ingestion endpoint.
type Dispatcher struct {
	endpoint   string
	apiKey     string
	schoolCode string
	attempts   int
	delay      time.Duration
	client     *http.Client
	logger     *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher. attempts is the total attempt budget, not a
// retry count; attempts=3 means one initial try plus two retries.
func New(endpoint, apiKey, schoolCode string, attempts int, delay, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if attempts <= 0 {
		attempts = 1
	}
	return &Dispatcher{
		endpoint:   endpoint,
		apiKey:     apiKey,
		schoolCode: schoolCode,
		attempts:   attempts,
		delay:      delay,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// payload is the wire shape of one batch.
type payload struct {
	SchoolCode string                    `json:"school_code"`
	Date       string                    `json:"date"`
	Attendance []models.AttendanceRecord `json:"attendance"`
}

// Dispatch delivers one day's records. An empty batch short-circuits to
// success without touching the network. Retries are strictly
// sequential: network errors and 5xx responses consume attempts with a
// fixed delay between them; any 4xx aborts immediately because the
// request will not get better by repeating it.
func (d *Dispatcher) Dispatch(ctx context.Context, records []models.AttendanceRecord, date string) (Result, error) {
	if len(records) == 0 {
		d.logger.Info("nothing to dispatch", zap.String("date", date))
		return Result{Delivered: true}, nil
	}

	body, err := json.Marshal(payload{
		SchoolCode: d.schoolCode,
		Date:       date,
		Attendance: records,
	})
	if err != nil {
		return Result{}, fmt.Errorf("cloud: encode batch: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			if err := d.sleep(ctx, d.delay); err != nil {
				return Result{Count: len(records), Attempts: attempt - 1}, err
			}
		}

		response, err := d.post(ctx, body)
		if err == nil {
			d.logger.Info("batch delivered",
				zap.String("date", date),
				zap.Int("records", len(records)),
				zap.Int("attempt", attempt),
			)
			return Result{Delivered: true, Count: len(records), Attempts: attempt, Response: response}, nil
		}

		lastErr = err
		if statusErr, ok := err.(*StatusError); ok && !statusErr.Retryable() {
			d.logger.Error("batch rejected, not retrying",
				zap.Int("status", statusErr.StatusCode),
				zap.String("body", statusErr.Body),
			)
			return Result{Count: len(records), Attempts: attempt, Response: statusErr.Body}, err
		}

		d.logger.Warn("dispatch attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("attempts_max", d.attempts),
			zap.Error(err),
		)
	}

	result := Result{Count: len(records), Attempts: d.attempts}
	if statusErr, ok := lastErr.(*StatusError); ok {
		result.Response = statusErr.Body
	}
	return result, fmt.Errorf("cloud: %d attempts exhausted: %w", d.attempts, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("cloud: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloud: post: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("cloud: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return string(data), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
