// Package poller waits for long-running backend operations.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LukaszStem/azure-cli/internal/backend"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/charmbracelet/log"
)

const (
	DefaultInterval         = 1000 * time.Millisecond
	DefaultProgressInterval = 10 * time.Second
)

// Handle is an in-flight asynchronous operation.
type Handle interface {
	// Done checks the operation status; it may issue a request.
	Done(ctx context.Context) (bool, error)
	Result(ctx context.Context) (any, error)
	// LastResponse is the raw body of the most recent status response.
	LastResponse() []byte
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	return backend.Sleep(ctx, d)
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// DetailLookup fetches progress detail for a correlation id.
type DetailLookup func(ctx context.Context, correlationID string) ([]string, error)

// Poller blocks until a Handle completes. The zero value is usable.
type Poller struct {
	Interval         time.Duration
	ProgressInterval time.Duration
	Clock            Clock
	Progress         Progress
	Lookup           DetailLookup
	// OnResultError maps a backend failure raised while reading the result.
	OnResultError func(error) error
	Logger        *log.Logger
}

// Wait polls h until done and returns its result. There is no overall
// deadline; pass one through ctx when needed.
func (p *Poller) Wait(ctx context.Context, h Handle, startMessage string) (any, error) {
	clock := p.Clock
	if clock == nil {
		clock = RealClock
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	progressInterval := p.ProgressInterval
	if progressInterval <= 0 {
		progressInterval = DefaultProgressInterval
	}
	progress := p.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	correlationID := ""
	correlationMessage := ""
	lastLookup := clock.Now()

	progress.Begin(startMessage)
	for {
		done, err := h.Done(ctx)
		if err != nil {
			progress.End()
			return nil, err
		}
		if done {
			break
		}
		progress.Update()

		if correlationID == "" {
			if id, ok := extractCorrelationID(h.LastResponse()); ok {
				correlationID = id
				correlationMessage = "Activity Id: " + id
			}
		} else if p.Lookup != nil && clock.Now().Sub(lastLookup) > progressInterval {
			lastLookup = clock.Now()
			details, err := p.Lookup(ctx, correlationID)
			if err != nil {
				logger.Info("progress lookup failed", "correlation_id", correlationID, "err", err)
			}
			for _, d := range details {
				logger.Info(d)
			}
		}

		if err := clock.Sleep(ctx, interval); err != nil {
			progress.End()
			logger.Warn(fmt.Sprintf("Long running operation wait cancelled. %s", correlationMessage))
			return nil, err
		}
	}
	progress.End()

	result, err := h.Result(ctx)
	if err != nil {
		var be *backend.Error
		if errors.As(err, &be) {
			return nil, p.resultError(err)
		}
		return nil, err
	}
	return result, nil
}

func (p *Poller) resultError(err error) error {
	if p.OnResultError != nil {
		return p.OnResultError(err)
	}
	return clierr.Wrap(clierr.CodeBackend, "long running operation failed", err)
}

type correlationPayload struct {
	Properties struct {
		CorrelationID string `json:"correlationId"`
	} `json:"properties"`
}

func extractCorrelationID(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var payload correlationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	if payload.Properties.CorrelationID == "" {
		return "", false
	}
	return payload.Properties.CorrelationID, true
}
