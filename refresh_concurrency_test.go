package goSession

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestConcurrentSessionsRefreshIndependently(t *testing.T) {
	cfg := testConfig()
	cfg.Session.MaxConcurrentSessions = 0
	env := newTestEnv(t, cfg)

	const n = 16
	logins := make([]*LoginResult, n)
	for i := range logins {
		logins[i] = env.login(t, fmt.Sprintf("user-%d", i%4))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*2)
	for _, res := range logins {
		wg.Add(1)
		go func(res *LoginResult) {
			defer wg.Done()
			ctx := context.Background()
			out, err := env.engine.Refresh(ctx, res.RefreshToken, res.Fingerprint)
			if err != nil {
				errs <- fmt.Errorf("refresh %s: %w", res.SessionID, err)
				return
			}
			if _, err := env.engine.VerifyAccess(ctx, out.AccessToken, out.Fingerprint); err != nil {
				errs <- fmt.Errorf("verify %s: %w", res.SessionID, err)
			}
		}(res)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}

	total := 0
	for i := 0; i < 4; i++ {
		sessions, err := env.engine.ListSessions(context.Background(), fmt.Sprintf("user-%d", i), "")
		if err != nil {
			t.Fatalf("list sessions: %v", err)
		}
		total += len(sessions)
	}
	if total != n {
		t.Fatalf("expected %d live sessions, got %d", n, total)
	}
}

func TestConcurrentVerifyAccess(t *testing.T) {
	env := newTestEnv(t, testConfig())
	res := env.login(t, "u1")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engine.VerifyAccess(context.Background(), res.AccessToken, res.Fingerprint); err != nil {
				t.Errorf("verify: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := env.engine.MetricsSnapshot().Counters[MetricAccessRejected]; got != 0 {
		t.Fatalf("expected no rejections, got %d", got)
	}
}
