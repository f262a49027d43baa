// Package openaicompat implements the generation backend over an
// OpenAI-compatible Chat Completions API.
//
// Any service that speaks the OpenAI wire format (OpenAI itself, DeepSeek,
// Qwen, vLLM or Ollama gateways) can back a session. The provider returns
// raw text and makes no structural guarantees; status codes are mapped by
// providers.MapHTTPError so callers can tell transient from permanent
// failures.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "openai",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.openai.com",
//	    DefaultModel: "gpt-4o-mini",
//	}, logger)
package openaicompat
