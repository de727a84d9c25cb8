// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history stores and formats per-patron conversation history.
//
// The contextual resolver and the reply prompts both consume the recent
// conversation; retention is bounded (a fixed number of messages per patron)
// so the store never grows without limit.
package history

import (
	"context"
	"strings"
)

// RetentionLimit is the maximum messages kept per patron. Older messages
// are discarded on write.
const RetentionLimit = 15

// FormatMessages is how many trailing messages the prompt formatter includes.
const FormatMessages = 6

// Role identifies who spoke a turn.
type Role string

const (
	// RoleUser is the patron.
	RoleUser Role = "user"
	// RoleAssistant is the librarian.
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation, most recent last in any slice.
type Turn struct {
	Role    Role
	Content string
}

// Store persists conversation history per patron.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// SaveTurn appends a patron query and the librarian's reply, trimming
	// to RetentionLimit. Empty cardNumber, query, or reply is a no-op.
	SaveTurn(ctx context.Context, cardNumber, userQuery, aiReply string) error

	// History returns the retained messages for cardNumber, oldest first.
	// An unknown patron returns an empty slice, not an error.
	History(ctx context.Context, cardNumber string) ([]Turn, error)
}

// Format renders the trailing FormatMessages messages for prompt inclusion.
//
// Description:
//
//	One line per message, "Human: ..." for the patron and "AI: ..." for the
//	librarian. Returns "" for empty history, which the resolver reads as
//	"no context available".
func Format(turns []Turn) string {
	if len(turns) > FormatMessages {
		turns = turns[len(turns)-FormatMessages:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		speaker := "AI"
		if t.Role == RoleUser {
			speaker = "Human"
		}
		lines = append(lines, speaker+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
