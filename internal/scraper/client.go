package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) yakusub"

// throttledClient serializes page fetches with a minimum inter-request
// interval and trips an availability flag on hard connection failures.
// The limiter reserves before each attempt, so failed requests still
// advance the schedule.
type throttledClient struct {
	http      *http.Client
	limiter   *rate.Limiter
	available atomic.Bool
}

func newThrottledClient(minInterval time.Duration, timeout time.Duration) *throttledClient {
	if minInterval < 2*time.Second {
		minInterval = 2 * time.Second
	}
	client := &throttledClient{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
	client.available.Store(true)
	return client
}

func (c *throttledClient) Available() bool {
	return c.available.Load()
}

// get fetches a page body. A DNS or dial failure marks the client
// unavailable for the remainder of the run; HTTP-level errors do not.
func (c *throttledClient) get(ctx context.Context, url string) (string, int, error) {
	if !c.available.Load() {
		return "", 0, ErrUnavailable
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", 0, fmt.Errorf("throttle wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "ja,zh-CN;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		if isHardFailure(err) {
			c.available.Store(false)
			return "", 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

func isHardFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}
