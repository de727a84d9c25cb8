// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package identifier

import (
	"reflect"
	"testing"
)

func TestExtract_Empty(t *testing.T) {
	got := Extract("")
	if !got.Empty() {
		t.Errorf("Extract(\"\") = %+v, want empty set", got)
	}
}

func TestExtract_ISBN10(t *testing.T) {
	got := Extract("do you have 0-306-40615-2 in stock?")
	want := []string{"0-306-40615-2"}
	if !reflect.DeepEqual(got.ISBN, want) {
		t.Errorf("ISBN = %v, want %v", got.ISBN, want)
	}
}

func TestExtract_ISBN13_TrailingPeriod(t *testing.T) {
	// The period immediately after the match is part of the surfaced token:
	// the catalog indexes some identifiers with it.
	got := Extract("looking for 978-0-306-40615-7. thanks")
	want := []string{"978-0-306-40615-7."}
	if !reflect.DeepEqual(got.ISBN, want) {
		t.Errorf("ISBN = %v, want %v", got.ISBN, want)
	}
}

func TestExtract_InvalidChecksumDropped(t *testing.T) {
	got := Extract("isbn 0306406151 maybe?")
	if len(got.ISBN) != 0 {
		t.Errorf("invalid checksum surfaced: %v", got.ISBN)
	}
}

func TestExtract_SBNPromotion(t *testing.T) {
	// 306406152 pads to the valid ISBN-10 0306406152; only the padded form
	// is surfaced.
	got := Extract("old stock number 306406152 from the card file")
	want := []string{"0306406152"}
	if !reflect.DeepEqual(got.ISBN, want) {
		t.Errorf("ISBN = %v, want %v", got.ISBN, want)
	}

	// 306406153 pads to an invalid checksum: nothing is surfaced, and with
	// no valid ISBN/ISSN the call-number fallback pass runs instead.
	got = Extract("old stock number 306406153 from the card file")
	if len(got.ISBN) != 0 {
		t.Errorf("invalid SBN surfaced: %v", got.ISBN)
	}
}

func TestExtract_ISSNNormalized(t *testing.T) {
	got := Extract("the journal with ISSN 0317 8471 please")
	want := []string{"0317-8471"}
	if !reflect.DeepEqual(got.ISSN, want) {
		t.Errorf("ISSN = %v, want %v", got.ISSN, want)
	}
}

func TestExtract_CallNumberOnlyWhenNoISBN(t *testing.T) {
	// A valid ISBN suppresses the call-number pass.
	got := Extract("QA 76.73 or maybe 0306406152")
	if len(got.CallNumbers) != 0 {
		t.Errorf("call numbers extracted despite valid ISBN: %v", got.CallNumbers)
	}

	// Without a valid identifier the call-number pass runs.
	got = Extract("it was shelved at QA 76.73")
	if len(got.CallNumbers) == 0 {
		t.Fatal("expected a call-number candidate")
	}
	if got.CallNumbers[0] != "QA 76.73" {
		t.Errorf("call number = %q, want %q", got.CallNumbers[0], "QA 76.73")
	}
}

func TestExtract_CallNumberCueOverridesSuppression(t *testing.T) {
	// An explicit "call number" request forces the pass even alongside a
	// valid ISBN.
	got := Extract("call number QA 76.73, not 0306406152")
	if len(got.CallNumbers) == 0 {
		t.Error("expected call numbers when explicitly requested")
	}
	if len(got.ISBN) != 1 {
		t.Errorf("ISBN = %v, want one entry", got.ISBN)
	}
}

func TestExtract_DedupPreservesOrder(t *testing.T) {
	got := Extract("0306406152 and again 0306406152 plus 978-0-306-40615-7")
	want := []string{"0306406152", "978-0-306-40615-7"}
	if !reflect.DeepEqual(got.ISBN, want) {
		t.Errorf("ISBN = %v, want %v", got.ISBN, want)
	}
}
