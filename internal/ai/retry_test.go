package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want time.Duration
		ok   bool
	}{
		{
			name: "retry info detail",
			err: genai.APIError{Code: 429, Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"},
			}},
			want: 17 * time.Second,
			ok:   true,
		},
		{
			name: "message fallback",
			err:  genai.APIError{Code: 429, Message: "Quota exceeded. Please retry in 4.5s."},
			want: 4500 * time.Millisecond,
			ok:   true,
		},
		{
			name: "wrapped pointer",
			err:  fmt.Errorf("call: %w", &genai.APIError{Code: 429, Details: []map[string]any{{"retryDelay": "2s"}}}),
			want: 2 * time.Second,
			ok:   true,
		},
		{name: "no hint", err: genai.APIError{Code: 429}},
		{name: "not an api error", err: errors.New("boom")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := RetryDelay(c.err)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, IsQuotaError(genai.APIError{Code: 429}))
	assert.True(t, IsQuotaError(genai.APIError{Status: "RESOURCE_EXHAUSTED"}))
	assert.False(t, IsQuotaError(genai.APIError{Code: 500}))
	assert.False(t, IsQuotaError(context.DeadlineExceeded))
}

func TestRetryPolicy_Delays(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	errs := []error{
		genai.APIError{Code: 429},
		genai.APIError{Code: 429, Details: []map[string]any{{"retryDelay": "90s"}}},
		genai.APIError{Code: 429},
	}
	attempts := 0
	err := p.Do(context.Background(), "test", func(context.Context) error {
		defer func() { attempts++ }()
		if attempts < len(errs) {
			return errs[attempts]
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 30 * time.Second, 4 * time.Second}, slept)
}

func TestRetryPolicy_LateAttemptsStayCapped(t *testing.T) {
	quota := genai.APIError{Code: 429}

	capped := RetryPolicy{BaseDelay: 2 * time.Second, MaxDelay: time.Minute}
	for _, attempt := range []int{5, 40, 100} {
		assert.Equal(t, time.Minute, capped.delay(quota, attempt), attempt)
	}

	uncapped := RetryPolicy{BaseDelay: 2 * time.Second}
	assert.Positive(t, uncapped.delay(quota, 100))
}

func TestRetryPolicy_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour}

	calls := 0
	cancel()
	err := p.Do(ctx, "test", func(context.Context) error {
		calls++
		return genai.APIError{Code: 429}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
