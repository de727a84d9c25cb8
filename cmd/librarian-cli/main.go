// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command librarian-cli is a terminal client for the librarian server.
//
// Usage:
//
//	librarian-cli ask "find books about whales"
//	librarian-cli chat --card C123
//	LIBRARIAN_URL=http://localhost:8080 librarian-cli chat
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/librarian/services/librarian"
)

var (
	cardNumber string
	authToken  string
)

func getServerBaseURL() string {
	if url := os.Getenv("LIBRARIAN_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080"
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "librarian-cli",
		Short: "Terminal client for the library catalog assistant",
	}
	rootCmd.PersistentFlags().StringVar(&cardNumber, "card", "", "Library card number for conversation history")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Session token (when the server enforces auth)")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and exit",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session",
		Run:   runChatCommand,
	}

	rootCmd.AddCommand(askCmd, chatCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	resp, err := sendQuery(question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	printResponse(resp)
}

func runChatCommand(_ *cobra.Command, _ []string) {
	fmt.Println("Library assistant. Type 'exit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" || query == "q" {
			fmt.Println("Goodbye.")
			break
		}

		resp, err := sendQuery(query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		printResponse(resp)
	}
}

func sendQuery(query string) (*librarian.QueryResponse, error) {
	payload, err := json.Marshal(librarian.QueryRequest{
		CardNumber: cardNumber,
		Query:      query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	url := getServerBaseURL() + "/v1/librarian/query"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("librarian server unavailable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var out librarian.QueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

func printResponse(resp *librarian.QueryResponse) {
	fmt.Printf("\n%s\n", resp.Reply)

	if len(resp.Books) > 0 {
		fmt.Println()
		for i, b := range resp.Books {
			availability := "not available"
			if b.QuantityAvailable > 0 {
				availability = fmt.Sprintf("%d available", b.QuantityAvailable)
			}
			fmt.Printf("%d. %s by %s (%s) [%s]\n", i+1, b.Title, b.Author, b.ISBN, availability)
		}
	}

	if len(resp.Suggestions) > 0 {
		fmt.Println("\nYou could also try:")
		for _, s := range resp.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
	fmt.Println()
}
