// Package gemini implements generation.Generator on Google's Gemini API.
//
// Requests are sent with a JSON response MIME type and a response schema
// converted from the request's JSON Schema, so the model answers with a
// single JSON document. Safety blocks map to generation.ErrContentBlocked;
// rate limits and server errors are retried with exponential backoff.
package gemini
