package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultConnectTimeout = 10 * time.Second
)

// BaseProvider contains common provider functionality
type BaseProvider struct {
	info       *Info
	httpClient *http.Client
	apiKey     string

	mu      sync.Mutex
	client  *openai.Client
	windows map[string]int // model -> window reported by /v1/models
}

// NewBaseProvider creates a base provider with common setup
func NewBaseProvider(providerType Type, name, host, apiKey string) *BaseProvider {
	host = strings.TrimSuffix(host, "/")
	if name == "" {
		name = string(providerType)
	}

	return &BaseProvider{
		info: &Info{
			Type:    providerType,
			Name:    name,
			Host:    host,
			APIPath: "/v1",
		},
		httpClient: newHTTPClient(),
		apiKey:     apiKey,
		windows:    make(map[string]int),
	}
}

// Info returns provider metadata
func (p *BaseProvider) Info() *Info {
	return p.info
}

// SetModel sets the active model
func (p *BaseProvider) SetModel(model string) {
	p.info.Model = model
	p.info.ContextWindow = 0
}

// openAIClient returns the shared OpenAI-compatible client
func (p *BaseProvider) openAIClient() *openai.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		config := openai.DefaultConfig(p.apiKey)
		config.BaseURL = p.info.Host + p.info.APIPath
		config.HTTPClient = p.httpClient
		p.client = openai.NewClientWithConfig(config)
	}
	return p.client
}

// Generate sends one chat completion request. Failures with an HTTP status
// come back as *APIError carrying any Retry-After hint.
func (p *BaseProvider) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	if p.info.Model == "" {
		return nil, fmt.Errorf("%s: no model selected", p.info.Name)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	hint := &retryAfterHolder{}
	ctx = context.WithValue(ctx, retryAfterKey{}, hint)

	resp, err := p.openAIClient().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.info.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, wrapError(p.info.Name, err, hint.get())
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no response choices returned", p.info.Name)
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// DetectModelsOpenAI queries the /v1/models endpoint (OpenAI-compatible).
// vLLM includes max_model_len per model, which is kept for window lookups.
func (p *BaseProvider) DetectModelsOpenAI(ctx context.Context) ([]string, error) {
	url := p.info.Host + "/v1/models"

	var modelsResp struct {
		Data []struct {
			ID          string `json:"id"`
			MaxModelLen int    `json:"max_model_len"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, url, &modelsResp); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(modelsResp.Data))
	p.mu.Lock()
	for _, m := range modelsResp.Data {
		models = append(models, m.ID)
		if m.MaxModelLen > 0 {
			p.windows[m.ID] = m.MaxModelLen
		}
	}
	p.mu.Unlock()

	p.info.Models = models
	return models, nil
}

// reportedWindow returns a window previously seen in /v1/models.
func (p *BaseProvider) reportedWindow(model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windows[model]
}

func (p *BaseProvider) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return p.doJSON(req, out)
}

func (p *BaseProvider) doJSON(req *http.Request, out any) error {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			Provider:   p.info.Name,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s %s", req.Method, req.URL.Path),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type retryAfterKey struct{}

// retryAfterHolder receives the Retry-After header of a throttled
// response. go-openai does not surface response headers on errors, so the
// transport records it for the request's caller.
type retryAfterHolder struct {
	mu sync.Mutex
	d  time.Duration
}

func (h *retryAfterHolder) set(d time.Duration) {
	h.mu.Lock()
	h.d = d
	h.mu.Unlock()
}

func (h *retryAfterHolder) get() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.d
}

type retryAfterTransport struct {
	base http.RoundTripper
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if h, ok := req.Context().Value(retryAfterKey{}).(*retryAfterHolder); ok {
			h.set(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
		}
	}
	return resp, nil
}

// newHTTPClient creates an HTTP client for LLM API requests.
// Client-level timeout is disabled (0) to allow long generations.
// Timeout should be controlled via context instead.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 0,
		Transport: &retryAfterTransport{
			base: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   defaultConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}
