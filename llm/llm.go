package llm

import (
	"context"

	"github.com/sweetpotato0/ticketpilot/message"
)

// Client is the interface implemented by model providers.
type Client interface {
	// Generate produces a completion for the given conversation
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)

	// SetTemperature sets the sampling temperature
	SetTemperature(temperature float64)

	// SetMaxTokens sets the maximum tokens to generate
	SetMaxTokens(maxTokens int64)

	// SetModel sets the model to use
	SetModel(model string)
}
