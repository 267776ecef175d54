// Package generation is the boundary between the worker and external
// language models. A Generator receives a rendered prompt plus the JSON
// Schema the answer must follow and returns the structured answer, a
// refusal (ErrContentBlocked) or an error.
//
// Implementations live in internal/platform/gemini and internal/platform/ollama.
package generation
