// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newMockProvider(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenRouterClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewOpenRouterClientWithConfig("test-key", "test-model", srv.URL, nil)
	return srv, client
}

func TestGenerate_Success(t *testing.T) {
	var gotAuth, gotModel string
	_, client := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "algebra, calculus"}}},
		})
	})

	got, err := client.Generate(context.Background(), "expand: mathematics")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "algebra, calculus" {
		t.Errorf("Generate = %q, want %q", got, "algebra, calculus")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q, want test-model", gotModel)
	}
}

func TestGenerate_HTTPError(t *testing.T) {
	_, client := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	})

	if _, err := client.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestGenerate_ProviderErrorBody(t *testing.T) {
	_, client := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Error: &apiError{Code: 429, Message: "rate limited"}})
	})

	if _, err := client.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error on provider error payload")
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	_, client := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	})

	if _, err := client.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	_, client := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Generate(ctx, "prompt"); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestGeneratorFunc(t *testing.T) {
	var g Generator = GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
	got, err := g.Generate(context.Background(), "hi")
	if err != nil || got != "echo: hi" {
		t.Errorf("GeneratorFunc = %q, %v", got, err)
	}
}
