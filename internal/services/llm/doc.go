// Package llm provides the JSON completion clients used for script generation.
//
// Two backends satisfy Completer:
//   - Client: the OpenRouter chat completion API (default)
//   - GeminiClient: Google Gemini through the generative AI SDK
//
// New picks the backend from config.LLM.Provider.
//
// # Retry Behaviour
//
// The OpenRouter client retries HTTP 408/429/5xx responses, network timeouts
// and empty answers with exponential backoff (1s doubling to a 10s cap, five
// requests at most). A Retry-After header replaces the computed delay.
// Context cancellation aborts retries immediately. Whatever error remains is
// tagged with a services marker so the worker can decide between a queue
// retry and failing the job: rejected credentials are configuration errors,
// other 4xx responses and policy refusals are permanent, everything else is
// transient.
//
// # JSON quirks
//
// Models sometimes wrap JSON in code fences or surround it with prose.
// DecodeJSON and ExtractJSON tolerate both.
package llm
