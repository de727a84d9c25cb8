// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/librarian/services/catalog/cache"
	"github.com/AleutianAI/librarian/services/catalog/resolve"
	"github.com/AleutianAI/librarian/services/history"
	"github.com/AleutianAI/librarian/services/llm"
)

func newFullEngine(gen llm.Generator, cat Catalog) *Engine {
	resolver := resolve.NewResolver(gen, nil)
	expander := resolve.NewExpander(gen, cache.New[string, resolve.KeywordSet](64, time.Hour), 12, nil)
	return NewEngine(cat, resolver, expander, Options{}, nil)
}

func TestResolveAndExpand_SpecificQuery(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "algebra, calculus, geometry", nil
	})
	e := newFullEngine(gen, &stubCatalog{})

	set := e.ResolveAndExpand(context.Background(), "books about advanced mathematics for engineers", nil)
	if len(set.Keywords) != 3 {
		t.Errorf("got %d keywords: %v", len(set.Keywords), set.Keywords)
	}
}

func TestResolveAndExpand_FollowUpUsesHistory(t *testing.T) {
	var prompts []string
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		if strings.Contains(prompt, "Conversation History") {
			return "python programming", nil
		}
		return "python, django, flask", nil
	})
	e := newFullEngine(gen, &stubCatalog{})

	turns := []history.Turn{
		{Role: history.RoleUser, Content: "find me books on python programming"},
		{Role: history.RoleAssistant, Content: "Here are some options."},
	}
	set := e.ResolveAndExpand(context.Background(), "recommend me more", turns)

	if len(prompts) != 2 {
		t.Fatalf("generator called %d times, want resolve + expand", len(prompts))
	}
	if !strings.Contains(prompts[0], "Human: find me books on python programming") {
		t.Errorf("resolve prompt missing formatted history:\n%s", prompts[0])
	}
	if set.Topic != "python programming" {
		t.Errorf("Topic = %q, want resolved topic", set.Topic)
	}
}

func TestExtractIdentifiers_Passthrough(t *testing.T) {
	e := newTestEngine(&stubCatalog{}, Options{})
	ids := e.ExtractIdentifiers("do you have 0306406152?")
	if len(ids.ISBN) != 1 || ids.ISBN[0] != "0306406152" {
		t.Errorf("ISBN = %v", ids.ISBN)
	}
}
