package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelContextWindow(t *testing.T) {
	w, ok := ModelContextWindow("gpt-4o")
	assert.True(t, ok)
	assert.Equal(t, 128_000, w)

	w, ok = ModelContextWindow("gpt-4o-2024-08-06")
	assert.True(t, ok)
	assert.Equal(t, 128_000, w)

	w, ok = ModelContextWindow("GPT-4")
	assert.True(t, ok)
	assert.Equal(t, 8_192, w)

	_, ok = ModelContextWindow("homegrown-7b")
	assert.False(t, ok)
	_, ok = ModelContextWindow("")
	assert.False(t, ok)
}

func TestRegistryWindows(t *testing.T) {
	r := NewRegistry()
	r.Register(Capability{Name: "small", Model: "gpt-4", ContextWindow: 8_000})
	r.Register(Capability{Name: "table", Model: "gemini-1.5-pro"})
	r.Register(Capability{Name: "unknown", Model: "homegrown"})

	w, ok := r.GetMaxWindow("small", "")
	assert.True(t, ok)
	assert.Equal(t, 8_000, w)

	w, ok = r.GetMaxWindow("table", "gemini-1.5-pro")
	assert.True(t, ok)
	assert.Equal(t, 2_097_152, w)

	w, ok = r.GetMaxWindow("unknown", "")
	assert.True(t, ok)
	assert.Equal(t, DefaultContextWindow, w)

	w, ok = r.GetMaxWindow("small", "gpt-4o")
	assert.True(t, ok)
	assert.Equal(t, 128_000, w)

	_, ok = r.GetMaxWindow("missing", "gpt-4o")
	assert.False(t, ok)
}

func TestOptimalProviderForLargeContext(t *testing.T) {
	r := NewRegistry()
	r.Register(Capability{Name: "b-large", ContextWindow: 100_000})
	r.Register(Capability{Name: "a-large", ContextWindow: 100_000})
	r.Register(Capability{Name: "small", ContextWindow: 8_000})

	c, ok := r.OptimalProviderForLargeContext(50_000)
	require.True(t, ok)
	assert.Equal(t, "a-large", c.Name)

	_, ok = r.OptimalProviderForLargeContext(200_000)
	assert.False(t, ok)

	r.Register(Capability{Name: "huge", ContextWindow: 1_000_000})
	c, ok = r.OptimalProviderForLargeContext(50_000)
	require.True(t, ok)
	assert.Equal(t, "huge", c.Name)

	names := []string{}
	for _, c := range r.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a-large", "b-large", "huge", "small"}, names)
}

func TestOptimalProviderExcludesNames(t *testing.T) {
	r := NewRegistry()
	r.Register(Capability{Name: "current", ContextWindow: 200_000})
	r.Register(Capability{Name: "other", ContextWindow: 190_000})

	c, ok := r.OptimalProviderForLargeContext(185_000, "current")
	require.True(t, ok)
	assert.Equal(t, "other", c.Name)

	_, ok = r.OptimalProviderForLargeContext(195_000, "current")
	assert.False(t, ok)
}

func TestRegisterProviderFallsBackToTable(t *testing.T) {
	r := NewRegistry()
	p := NewOpenAIProvider("hosted", "", "")
	p.SetModel("gpt-4-turbo")

	c := r.RegisterProvider(context.Background(), p, 0)
	assert.Equal(t, 128_000, c.ContextWindow)
	assert.Equal(t, TypeOpenAI, c.Vendor)

	p.SetModel("homegrown")
	c = r.RegisterProvider(context.Background(), p, 0)
	assert.Equal(t, DefaultContextWindow, c.ContextWindow)

	c = r.RegisterProvider(context.Background(), p, 4096)
	assert.Equal(t, 4096, c.ContextWindow)
}
