// Package llm provides LLM client implementations.
//
// The factory creates LLM clients based on provider configuration.
// Currently supports:
//   - Anthropic Claude
//
// The stub provider is handled upstream by the executor registry and never
// reaches the factory.
package llm
