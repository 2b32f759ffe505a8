package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// OllamaProvider implements Provider for Ollama servers
type OllamaProvider struct {
	*BaseProvider
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(name, host, apiKey string) *OllamaProvider {
	return &OllamaProvider{BaseProvider: NewBaseProvider(TypeOllama, name, host, apiKey)}
}

// DetectModels queries available models from the Ollama server
// Tries OpenAI-compatible endpoint first, falls back to native /api/tags
func (p *OllamaProvider) DetectModels(ctx context.Context) ([]string, error) {
	models, err := p.DetectModelsOpenAI(ctx)
	if err == nil && len(models) > 0 {
		return models, nil
	}
	return p.detectModelsNative(ctx)
}

// detectModelsNative queries the Ollama-specific /api/tags endpoint
func (p *OllamaProvider) detectModelsNative(ctx context.Context) ([]string, error) {
	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.getJSON(ctx, p.info.Host+"/api/tags", &tagsResp); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(tagsResp.Models))
	for _, m := range tagsResp.Models {
		models = append(models, m.Name)
	}

	p.info.Models = models
	return models, nil
}

// DetectContextWindow asks /api/show for the model. An explicit num_ctx
// parameter wins over the architecture's trained context length, since
// that is what the server will actually accept.
func (p *OllamaProvider) DetectContextWindow(ctx context.Context) (int, error) {
	body, err := json.Marshal(map[string]string{"model": p.info.Model})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.info.Host+"/api/show", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var show struct {
		Parameters string         `json:"parameters"`
		ModelInfo  map[string]any `json:"model_info"`
	}
	if err := p.doJSON(req, &show); err != nil {
		return 0, err
	}

	w := numCtxParameter(show.Parameters)
	if w == 0 {
		for k, v := range show.ModelInfo {
			if !strings.HasSuffix(k, ".context_length") {
				continue
			}
			if f, ok := v.(float64); ok && f > 0 {
				w = int(f)
				break
			}
		}
	}
	if w <= 0 {
		return 0, fmt.Errorf("ollama did not report a context length for %q", p.info.Model)
	}
	p.info.ContextWindow = w
	return w, nil
}

// numCtxParameter extracts num_ctx from Ollama's Modelfile parameter text.
func numCtxParameter(params string) int {
	for _, line := range strings.Split(params, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "num_ctx" {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				return n
			}
		}
	}
	return 0
}
