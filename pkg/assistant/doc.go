// Package assistant is the "ask a model" capability: one prompt in, one
// text answer out, through Anthropic Claude or OpenAI.
//
// Ask never returns an error. A missing API key, an unknown provider or a
// failed call comes back as an Answer with Success false and a message the
// caller can show as-is.
package assistant
