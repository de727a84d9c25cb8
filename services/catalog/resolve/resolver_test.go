// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/librarian/services/llm"
)

func countingGenerator(response string, err error, calls *int) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		*calls++
		return response, err
	})
}

func TestIsFollowUp(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"recommend me more", true},
		{"another one please", true},
		{"what else do you have", true},
		{"show me others", true},
		{"any more like that?", true},
		{"dragons", true}, // one significant token
		{"science fiction", true},
		{"history of the roman empire in the west", false},
		{"books about deep sea creatures and ocean exploration", false},
	}
	for _, tc := range tests {
		if got := IsFollowUp(tc.query); got != tc.want {
			t.Errorf("IsFollowUp(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestResolve_SpecificQuerySkipsGenerator(t *testing.T) {
	calls := 0
	r := NewResolver(countingGenerator("unused", nil, &calls), nil)

	query := "history of the roman empire in the west"
	got := r.Resolve(context.Background(), "  "+query+"  ", "Human: hello\nAI: hi")
	if got != query {
		t.Errorf("Resolve = %q, want trimmed query verbatim", got)
	}
	if calls != 0 {
		t.Errorf("generator called %d times, want 0", calls)
	}
}

func TestResolve_NoHistorySkipsGenerator(t *testing.T) {
	calls := 0
	r := NewResolver(countingGenerator("unused", nil, &calls), nil)

	if got := r.Resolve(context.Background(), "more", ""); got != "more" {
		t.Errorf("Resolve = %q, want literal query without history", got)
	}
	if calls != 0 {
		t.Errorf("generator called %d times, want 0", calls)
	}
}

func TestResolve_FollowUpUsesGenerator(t *testing.T) {
	calls := 0
	r := NewResolver(countingGenerator("  \"python programming\"  ", nil, &calls), nil)

	got := r.Resolve(context.Background(), "recommend me more", "Human: find me books on python programming\nAI: Here are some...")
	if got != "python programming" {
		t.Errorf("Resolve = %q, want cleaned topic", got)
	}
	if calls != 1 {
		t.Errorf("generator called %d times, want 1", calls)
	}
}

func TestResolve_GeneratorFailureFallsBack(t *testing.T) {
	calls := 0
	r := NewResolver(countingGenerator("", errors.New("provider down"), &calls), nil)

	if got := r.Resolve(context.Background(), "more please", "Human: dragons\nAI: ..."); got != "more please" {
		t.Errorf("Resolve = %q, want literal query on failure", got)
	}
}

func TestResolve_WeakPlaceholderFallsBack(t *testing.T) {
	calls := 0
	r := NewResolver(countingGenerator("Similar books", nil, &calls), nil)

	if got := r.Resolve(context.Background(), "show me similar", "Human: dragons\nAI: ..."); got != "show me similar" {
		t.Errorf("Resolve = %q, want literal query on placeholder topic", got)
	}
}

func TestResolve_EmptyResponseFallsBack(t *testing.T) {
	calls := 0
	r := NewResolver(countingGenerator("   \n", nil, &calls), nil)

	if got := r.Resolve(context.Background(), "more", "Human: dragons\nAI: ..."); got != "more" {
		t.Errorf("Resolve = %q, want literal query on empty topic", got)
	}
}

func TestCleanTopic_KeepsFirstLineOnly(t *testing.T) {
	got := cleanTopic("deep sea creatures\nI chose this because...")
	if got != "deep sea creatures" {
		t.Errorf("cleanTopic = %q", got)
	}
}
