package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ErrRateLimited is returned once quota errors persist past every retry.
var ErrRateLimited = errors.New("ai quota exhausted")

// RetryPolicy retries calls that fail with a quota (HTTP 429) error.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the AI_MAX_RETRIES / AI_RETRY_DELAY defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: time.Minute}
}

// Do runs fn, retrying quota errors up to MaxRetries times. The delay is the
// server supplied retryDelay when present, otherwise BaseDelay doubled per
// attempt. Any other error is returned immediately.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsQuotaError(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			return fmt.Errorf("%w: %s after %d retries: %v", ErrRateLimited, op, attempt, err)
		}

		delay := p.delay(err, attempt)
		log.Warn().Str("op", op).Int("attempt", attempt+1).Dur("delay", delay).Msg("AI quota hit, retrying")
		if err := p.wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (p RetryPolicy) delay(err error, attempt int) time.Duration {
	d, ok := RetryDelay(err)
	if !ok {
		d = p.BaseDelay
		for i := 0; i < attempt && d < math.MaxInt64/2; i++ {
			if p.MaxDelay > 0 && d >= p.MaxDelay {
				break
			}
			d *= 2
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func apiError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

// IsQuotaError reports whether err is a 429 / RESOURCE_EXHAUSTED response.
func IsQuotaError(err error) bool {
	if apiErr, ok := apiError(err); ok {
		return apiErr.Code == http.StatusTooManyRequests || strings.Contains(apiErr.Status, "RESOURCE_EXHAUSTED")
	}
	return false
}

var retryInMessage = regexp.MustCompile(`(?i)retry in ([0-9]+(?:\.[0-9]+)?)s`)

// RetryDelay extracts the server's suggested delay from a quota error. It
// looks at the google.rpc.RetryInfo detail first, then at the message text.
func RetryDelay(err error) (time.Duration, bool) {
	apiErr, ok := apiError(err)
	if !ok {
		return 0, false
	}
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d, true
		}
	}
	if m := retryInMessage.FindStringSubmatch(apiErr.Message); m != nil {
		secs, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return time.Duration(secs * float64(time.Second)), true
		}
	}
	return 0, false
}
