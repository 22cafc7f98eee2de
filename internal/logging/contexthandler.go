package logging

import "github.com/rs/zerolog"

// ContextProvider adds dynamic fields to each log event.
type ContextProvider func(e *zerolog.Event)

// ContextHook injects the provider's fields into every event.
type ContextHook struct {
	provider ContextProvider
}

// NewContextHook creates a hook around provider.
func NewContextHook(provider ContextProvider) ContextHook {
	return ContextHook{provider: provider}
}

// Run implements zerolog.Hook.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if h.provider != nil && level != zerolog.NoLevel {
		h.provider(e)
	}
}
