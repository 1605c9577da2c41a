package translate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"yakusub/internal/config"
	"yakusub/internal/logging"
)

const (
	maxChatAttempts = 3
	retryDelay      = 8 * time.Second
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tunes a single chat call.
type ChatOptions struct {
	Temperature *float64
	Stream      bool
	JSONFormat  bool
	Timeout     time.Duration
}

// ChatResult is the outcome of one chat call including all retries. A
// provider never returns an error value; failure is carried in the result.
type ChatResult struct {
	Success      bool
	AttemptCount int
	TimeTakenMS  int64
	Content      string
	ErrorKind    ErrorKind
	ErrorDetail  string
}

// Provider is one chat-completion endpoint plus retry and circuit-breaker
// policy. Once a provider-fatal error trips the breaker, every later call
// fails immediately for the rest of the process.
type Provider struct {
	service   string
	model     string
	apiKey    string
	baseURL   string
	timeout   time.Duration
	client    *http.Client
	available atomic.Bool
	logger    *slog.Logger

	sleeper func(context.Context, time.Duration) error
}

// NewProvider builds a Provider from its config node. The call budget is
// enforced per call via context, not on the HTTP client, so subtitle tasks
// get their long default and a configured timeout can extend it.
func NewProvider(cfg config.Provider, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Provider{
		service: cfg.Service,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		client:  &http.Client{},
		logger:  logging.NewComponentLogger(logger, "provider."+cfg.Service),
		sleeper: sleepContext,
	}
	p.available.Store(true)
	return p
}

// Name identifies the provider in logs and config.
func (p *Provider) Name() string { return p.service + "/" + p.model }

// Model returns the configured model identifier.
func (p *Provider) Model() string { return p.model }

// Available reports the circuit-breaker state.
func (p *Provider) Available() bool { return p.available.Load() }

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Chat performs the request with up to three attempts on retryable errors
// and a fixed delay between attempts. TimeTakenMS covers the whole loop.
func (p *Provider) Chat(ctx context.Context, messages []Message, opts ChatOptions) ChatResult {
	started := time.Now()
	result := ChatResult{}

	if !p.available.Load() {
		result.ErrorKind = ErrOther
		result.ErrorDetail = "provider circuit open"
		result.TimeTakenMS = time.Since(started).Milliseconds()
		return result
	}

	// A timeout configured on the provider wins over the task default.
	budget := opts.Timeout
	if p.timeout > 0 {
		budget = p.timeout
	}
	callCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	for attempt := 1; attempt <= maxChatAttempts; attempt++ {
		result.AttemptCount = attempt
		content, kind, detail := p.chatOnce(callCtx, messages, opts)
		if kind == "" {
			result.Success = true
			result.Content = content
			break
		}
		result.ErrorKind = kind
		result.ErrorDetail = detail

		if kind.ProviderFatal() {
			p.available.Store(false)
			p.logger.Warn("provider disabled for this run",
				logging.String("kind", string(kind)), logging.String("detail", detail))
			break
		}
		if !kind.Retryable() || attempt == maxChatAttempts {
			break
		}
		p.logger.Debug("retrying chat call",
			logging.Int("attempt", attempt), logging.String("kind", string(kind)))
		if err := p.sleeper(callCtx, retryDelay); err != nil {
			result.ErrorKind = ErrTimeout
			result.ErrorDetail = err.Error()
			break
		}
	}

	result.TimeTakenMS = time.Since(started).Milliseconds()
	return result
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Temperature    *float64          `json:"temperature,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatOnce performs one HTTP round trip. An empty kind means success.
func (p *Provider) chatOnce(ctx context.Context, messages []Message, opts ChatOptions) (string, ErrorKind, string) {
	payload := chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		Stream:      opts.Stream,
	}
	if opts.JSONFormat {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", ErrOther, fmt.Sprintf("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", ErrOther, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		return "", kind, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := classifyStatus(resp.StatusCode, string(raw))
		return "", kind, fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if opts.Stream {
		return p.readStream(resp.Body)
	}
	return p.readCompletion(resp.Body)
}

func (p *Provider) readCompletion(body io.Reader) (string, ErrorKind, string) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", ErrConnection, fmt.Sprintf("read body: %v", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", ErrOther, fmt.Sprintf("decode response: %v", err)
	}
	if parsed.Error != nil {
		return "", ErrOther, parsed.Error.Message
	}
	if len(parsed.Choices) == 0 {
		return "", ErrOther, "empty choices"
	}
	choice := parsed.Choices[0]
	if kind, fatal := classifyFinishReason(choice.FinishReason); fatal {
		return "", kind, "finish_reason=" + choice.FinishReason
	}
	content := choice.Message.Content
	if content == "" {
		content = choice.Delta.Content
	}
	if content == "" {
		return "", ErrOther, "empty content"
	}
	return content, "", ""
}

// readStream accumulates server-sent-event deltas into one content string.
func (p *Provider) readStream(body io.Reader) (string, ErrorKind, string) {
	var content strings.Builder
	var finishReason string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content.WriteString(chunk.Choices[0].Delta.Content)
		if reason := chunk.Choices[0].FinishReason; reason != "" {
			finishReason = reason
		}
	}
	if err := scanner.Err(); err != nil {
		return "", ErrConnection, fmt.Sprintf("read stream: %v", err)
	}
	if kind, fatal := classifyFinishReason(finishReason); fatal {
		return "", kind, "finish_reason=" + finishReason
	}
	if content.Len() == 0 {
		return "", ErrOther, "empty stream"
	}
	return content.String(), "", ""
}
