// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the text-generation collaborator client used by the
// librarian services for paraphrasing, keyword expansion, and intent
// classification.
//
// The catalog engine never lets a generation failure escape its public
// operations (every call site has a deterministic fallback), so clients in
// this package report errors honestly and leave recovery to the caller.
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import "context"

// Generator is the minimal text-generation interface the engine consumes.
//
// Description:
//
//	One prompt in, one completion out. No tool calls, no streaming, no
//	multi-turn state: conversation history is flattened into the prompt by
//	the caller. This is the entire surface the engine depends on, which
//	keeps test fakes to a single function.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Generator interface {
	// Generate sends prompt and returns the completion text.
	//
	// Outputs:
	//   - string: The completion. May be empty even on success.
	//   - error: Non-nil on transport or provider failure.
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
