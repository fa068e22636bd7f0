package transport

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	logs "github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/observability"
)

// BackoffConfig defines reopen backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// Connect calls open until it succeeds or ctx ends, sleeping between attempts.
// kind labels logs and metrics.
func Connect(ctx context.Context, kind string, open Opener, cfg BackoffConfig, rng *rand.Rand) (Transport, error) {
	for attempt := 1; ; attempt++ {
		t, err := open(ctx)
		if err == nil {
			observability.RecordTransportOpen(kind, true)
			if attempt > 1 {
				logs.Infof("transport.Connect reopened kind=%s attempts=%d link=%s", kind, attempt, t)
			}
			return t, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		observability.RecordTransportOpen(kind, false)
		delay := NextBackoffDelay(cfg, attempt, rng)
		logs.Warnf("transport.Connect open failed kind=%s attempt=%d retry_in=%s err=%v", kind, attempt, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}
