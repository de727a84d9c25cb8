// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package librarian

import "github.com/AleutianAI/librarian/services/intent"

// Follow-up suggestions attached to each reply so the client can render
// tappable next actions. Static per intent; the collaborator never writes
// these, so they are always safe to display verbatim.

var defaultSuggestions = []string{
	"Find books about a topic I'm interested in.",
	"Recommend me a good book.",
	"I need help with library borrowing or services.",
}

var searchSuggestions = []string{
	"Search for more books by this author or subject.",
	"Recommend me a book from these results.",
	"Look up a book by its ISBN.",
}

var recommendSuggestions = []string{
	"Recommend me another book.",
	"Find books on a related topic.",
	"Tell me more about one of these titles.",
}

var lookupSuggestions = []string{
	"Check availability of another ISBN.",
	"Find more books by this author.",
	"Recommend me something similar.",
}

// suggestionsFor returns the follow-up prompts for a completed intent. An
// unsuccessful catalog path falls back to the defaults, since "more books by
// this author" makes no sense when nothing was found.
func suggestionsFor(it intent.Intent, found bool) []string {
	if !found {
		return defaultSuggestions
	}
	switch it {
	case intent.Search:
		return searchSuggestions
	case intent.Recommend:
		return recommendSuggestions
	case intent.IdentifierLookup:
		return lookupSuggestions
	default:
		return defaultSuggestions
	}
}
