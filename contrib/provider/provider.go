package provider

import (
	"fmt"
	"os"

	"github.com/sweetpotato0/ticketpilot/contrib/provider/claude"
	"github.com/sweetpotato0/ticketpilot/contrib/provider/groq"
	"github.com/sweetpotato0/ticketpilot/contrib/provider/openai"
	"github.com/sweetpotato0/ticketpilot/llm"
)

// New builds an llm.Client for the named provider. The API key falls back to
// the provider's conventional environment variable when empty.
func New(name, apiKey, model string) (llm.Client, error) {
	switch name {
	case "groq":
		if apiKey == "" {
			apiKey = os.Getenv("GROQ_API_KEY")
		}
		cfg := groq.DefaultConfig(apiKey)
		if model != "" {
			cfg.Model = model
		}
		return groq.New(cfg), nil
	case "openai":
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		cfg := openai.DefaultConfig()
		cfg.APIKey = apiKey
		if model != "" {
			cfg.Model = model
		}
		return openai.New(cfg), nil
	case "claude":
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		cfg := claude.DefaultConfig(apiKey, "")
		if model != "" {
			cfg.Model = model
		}
		return claude.New(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
