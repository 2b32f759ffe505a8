package provider

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// hostRules map well-known host fragments to a vendor. Order matters:
// "ollama" must be tested before the generic "llama".
var hostRules = []struct {
	typ     Type
	matches func(host string) bool
}{
	{TypeOpenAI, func(h string) bool {
		return strings.Contains(h, "api.openai.com") || strings.Contains(h, ".openai.azure.com")
	}},
	{TypeOllama, func(h string) bool {
		return strings.Contains(h, "ollama") || strings.HasSuffix(h, ":11434")
	}},
	{TypeVLLM, func(h string) bool { return strings.Contains(h, "vllm") }},
	{TypeLlamaCpp, func(h string) bool { return strings.Contains(h, "llama") }},
}

// probes are tried in order against hosts no rule recognised. The
// OpenAI-compatible model list is last since every vendor serves it.
var probes = []struct {
	path string
	typ  Type
}{
	{"/api/tags", TypeOllama},
	{"/props", TypeLlamaCpp},
	{"/v1/models", TypeVLLM},
}

var probeClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
	},
}

// Detect identifies the vendor behind host, first by URL and then by
// probing vendor-specific endpoints. TypeUnknown means nothing answered.
func Detect(ctx context.Context, host string) Type {
	host = strings.TrimSuffix(host, "/")
	lower := strings.ToLower(host)

	for _, r := range hostRules {
		if r.matches(lower) {
			return r.typ
		}
	}

	for _, p := range probes {
		if ctx.Err() != nil {
			return TypeUnknown
		}
		if endpointExists(ctx, host+p.path) {
			return p.typ
		}
	}
	return TypeUnknown
}

// endpointExists treats any non-404 answer below 500 as present; 401 and
// 403 mean the route exists behind auth.
func endpointExists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusNotFound
}

// ParseVendorConfig maps a configured vendor name to a Type. Empty, "auto"
// and unrecognised names yield TypeUnknown, which triggers detection.
func ParseVendorConfig(vendor string) Type {
	switch strings.ToLower(strings.TrimSpace(vendor)) {
	case "vllm":
		return TypeVLLM
	case "ollama":
		return TypeOllama
	case "llama.cpp", "llamacpp", "llama":
		return TypeLlamaCpp
	case "openai", "azure", "azure-openai":
		return TypeOpenAI
	default:
		return TypeUnknown
	}
}
