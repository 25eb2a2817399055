// Package textgen wraps the local text-generation runtime's OpenAI-compatible
// chat completion API. It is used to enhance user prompts before media
// generation and to health-check the runtime at daemon startup.
package textgen
