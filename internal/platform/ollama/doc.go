// Package ollama implements generation.Generator on a local or remote
// Ollama server, passing the request's JSON Schema as the structured
// output format.
package ollama
