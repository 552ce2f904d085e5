package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestFromStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{name: "unauthorized", status: 401, body: "invalid api key", want: KindAuthentication},
		{name: "forbidden", status: 403, body: "no permission", want: KindAuthorization},
		{name: "too many requests", status: 429, body: "slow down", want: KindRateLimit},
		{name: "bad request with concurrency language", status: 400, body: `{"message":"maximum concurrent videos reached"}`, want: KindRateLimit},
		{name: "bad request with quota language", status: 400, body: "monthly quota exhausted", want: KindRateLimit},
		{name: "bad request no limit words", status: 400, body: `{"message":"unknown persona identifier"}`, want: KindValidation},
		{name: "request timeout", status: 408, body: "", want: KindTimeout},
		{name: "gateway timeout", status: 504, body: "", want: KindTimeout},
		{name: "server error", status: 500, body: "boom", want: KindUpstream},
		{name: "unrecognized 4xx", status: 418, body: "teapot", want: KindUpstream},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FromStatus("tavus", tt.status, []byte(tt.body))
			if got.Kind != tt.want {
				t.Fatalf("status %d body %q: expected %s, got %s", tt.status, tt.body, tt.want, got.Kind)
			}
			if got.Status != tt.status {
				t.Fatalf("expected status %d preserved, got %d", tt.status, got.Status)
			}
		})
	}
}

func TestFromNetworkClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "canceled", err: context.Canceled, want: KindTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("do request: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "tavusapi.com"}, want: KindConnectivity},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:443: connect: connection refused"), want: KindConnectivity},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FromNetwork("elevenlabs", tt.err)
			if got.Kind != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Kind)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("expected wrapped cause to survive errors.Is")
			}
		})
	}
}

func TestKindOfForeignError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("plain")); got != KindUpstream {
		t.Fatalf("expected foreign errors to classify as upstream, got %s", got)
	}
	if got := KindOf(New(KindPersistence, "records", "insert failed")); got != KindPersistence {
		t.Fatalf("expected persistence, got %s", got)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	retryable := []Kind{KindTimeout, KindConnectivity, KindUpstream, KindRateLimit}
	terminal := []Kind{KindConfiguration, KindAuthentication, KindAuthorization, KindValidation, KindPersistence}
	for _, k := range retryable {
		if !Retryable(k) {
			t.Fatalf("expected %s retryable", k)
		}
	}
	for _, k := range terminal {
		if Retryable(k) {
			t.Fatalf("expected %s not retryable", k)
		}
	}
}

func TestUserNoticeDistinguishesRateLimit(t *testing.T) {
	t.Parallel()

	quota := UserNotice(New(KindRateLimit, "tavus", "maximum concurrent videos"))
	other := UserNotice(New(KindUpstream, "tavus", "internal error"))
	if quota == other {
		t.Fatalf("expected distinct notice for rate-limit faults")
	}
	if quota == "" || other == "" {
		t.Fatalf("expected non-empty notices")
	}
}
