package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HealthCheck probes the provider's model listing endpoint with a single
// unretried request. It verifies reachability and key validity without
// spending tokens, and never touches the circuit breaker.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode, "")
		return fmt.Errorf("health check status %d (%s)", resp.StatusCode, kind)
	}
	return nil
}
