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

import "fmt"

// =============================================================================
// Reply Prompts
// =============================================================================
//
// The book lists themselves are rendered by the client; the collaborator only
// writes the surrounding conversational text. Every prompt says so twice
// because models love inventing "[book list here]" placeholders anyway.

func searchBooksPrompt(topic, historyText, question string) string {
	return fmt.Sprintf(
		"You're a helpful librarian assistant. The user is looking for books about:\n%q\n\n"+
			"The actual book list will be shown to the user by the system. DO NOT write or mention any placeholder like '[Insert book list here]'.\n"+
			"DO NOT list books yourself. DO NOT refer to how they are retrieved.\n\n"+
			"Your job is to:\n"+
			"- Briefly introduce the results (e.g., 'Here are the books we found about...')\n"+
			"- Suggest ways to refine the search (e.g., subtopics, genres)\n"+
			"- Offer help naturally if they want more guidance\n\n"+
			"Chat history:\n%s\n"+
			"User Question: %s\n\n"+
			"Respond with a short, natural message, no placeholders.",
		topic, historyText, question)
}

func recommendBooksPrompt(topic, historyText, question string) string {
	return fmt.Sprintf(
		"You're a friendly librarian assistant. The user is asking for book recommendations based on:\n%q\n\n"+
			"The recommended book list will be shown to the user by the system. DO NOT write or mention any placeholder like '[Insert book list here]'.\n"+
			"DO NOT list books yourself. DO NOT refer to how the books were retrieved or selected.\n\n"+
			"Your job is to:\n"+
			"- Briefly introduce the list as curated recommendations\n"+
			"- Encourage the user to explore the titles shown\n"+
			"- Offer help naturally if they want more suggestions or have specific needs\n\n"+
			"Chat history:\n%s\n"+
			"User Question: %s\n\n"+
			"Respond with a short, natural message, no placeholders.",
		topic, historyText, question)
}

func generalInfoPrompt(historyText, question string) string {
	if historyText == "" {
		historyText = "[No prior messages]"
	}
	return fmt.Sprintf(
		"You are an enthusiastic librarian assistant. Your main job is to help users with library-related questions. "+
			"However, you may also respond warmly and informatively to simple personal or general queries.\n\n"+
			"If the user's question is unclear, irrelevant, or outside the scope of library services, respond briefly and kindly. "+
			"Encourage them to ask something related to the library, books, services, or recommendations.\n\n"+
			"Chat History:\n%s\n"+
			"User Question: %s\n\n"+
			"Response:",
		historyText, question)
}

// =============================================================================
// Canned Replies
// =============================================================================
//
// Deterministic fallbacks and error-class messages. The three catalog
// failure classes get distinct phrasings on purpose: "try again later" and
// "nothing matched" call for different patron behavior.

func specificBookFoundReply(title, isbn string) string {
	return fmt.Sprintf(
		"Yes, we have the book titled *%s* in our catalog. The ISBN for this book is %s. "+
			"Let me know if you'd like help finding more details or locating it on the shelf!",
		title, isbn)
}

const bookNotFoundReply = "Sorry, I couldn't find a match in our catalog for this identifier. " +
	"Please double-check the title or ISBN, and feel free to ask about another book, I'm happy to help!"

const noIdentifierReply = "I couldn't spot a valid ISBN, ISSN, or call number in your message. " +
	"Please check the number and try again."

const emptySearchReply = "Sorry, I couldn't find any books matching your query. " +
	"Try another keyword, a broader topic, or a different spelling."

const catalogUnavailableReply = "I'm sorry, our catalog is currently unavailable. " +
	"Please try again in a few minutes."

const catalogTimeoutReply = "Searching the catalog is taking too long right now. " +
	"Please try again shortly or narrow your request."

const searchIntroFallback = "Here are the books I found for you:"

const recommendIntroFallback = "Here are some recommendations you might enjoy:"

const generalInfoFallback = "I'm happy to help with library questions, book searches, and recommendations. " +
	"What would you like to find?"
