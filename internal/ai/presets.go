package ai

import "sort"

// Style is the request/response shape a provider speaks.
type Style int

const (
	// StyleOpenAI is the chat-completions shape shared by most vendors.
	StyleOpenAI Style = iota
	// StyleAnthropic is the Messages API.
	StyleAnthropic
	// StyleOllama is a local Ollama server.
	StyleOllama
)

// Preset holds a provider's defaults.
type Preset struct {
	Name    string
	Style   Style
	BaseURL string
	Model   string
	EnvKey  string // empty when no key is needed
}

var presets = map[string]Preset{
	"openai": {
		Name:    "openai",
		Style:   StyleOpenAI,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		EnvKey:  "OPENAI_API_KEY",
	},
	"groq": {
		Name:    "groq",
		Style:   StyleOpenAI,
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama-3.1-8b-instant",
		EnvKey:  "GROQ_API_KEY",
	},
	"openrouter": {
		Name:    "openrouter",
		Style:   StyleOpenAI,
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "openai/gpt-4o-mini",
		EnvKey:  "OPENROUTER_API_KEY",
	},
	"together": {
		Name:    "together",
		Style:   StyleOpenAI,
		BaseURL: "https://api.together.xyz/v1",
		Model:   "meta-llama/Llama-3.3-70B-Instruct-Turbo",
		EnvKey:  "TOGETHER_API_KEY",
	},
	"anthropic": {
		Name:    "anthropic",
		Style:   StyleAnthropic,
		BaseURL: "https://api.anthropic.com",
		Model:   "claude-sonnet-4-20250514",
		EnvKey:  "ANTHROPIC_API_KEY",
	},
	"ollama": {
		Name:    "ollama",
		Style:   StyleOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

// LookupPreset returns the defaults for a provider name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames lists the supported provider names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
