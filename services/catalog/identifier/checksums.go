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

import "strings"

// =============================================================================
// Checksum Validators
// =============================================================================
//
// These validators operate on the compact form of a candidate: digits plus a
// possible check character 'X', with hyphens and spaces already removed.
// An unvalidated candidate is never surfaced by the extractor, so these
// functions are the single source of truth for identifier validity.

// compactDigitsX strips everything except digits and X/x from s and
// uppercases the result.
func compactDigitsX(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'X' || r == 'x':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// compactDigits strips everything except digits from s.
func compactDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidISBN10 reports whether s is a checksum-valid ISBN-10.
//
// Description:
//
//	Weighted sum with weights 10..1 over the ten positions; 'X' counts as 10
//	but only in the final position. Valid iff the sum is ≡ 0 mod 11.
//	Hyphens and spaces in s are ignored.
func IsValidISBN10(s string) bool {
	c := compactDigitsX(s)
	if len(c) != 10 {
		return false
	}
	total := 0
	for i, ch := range c {
		var val int
		switch {
		case ch == 'X':
			if i != 9 {
				return false
			}
			val = 10
		default:
			val = int(ch - '0')
		}
		total += (10 - i) * val
	}
	return total%11 == 0
}

// IsValidISBN13 reports whether s is a checksum-valid ISBN-13.
//
// Description:
//
//	Alternating 1/3 weights over the first twelve digits; the check digit is
//	(10 - sum mod 10) mod 10 and must equal the thirteenth digit. Hyphens and
//	spaces in s are ignored; 'X' never appears in ISBN-13.
func IsValidISBN13(s string) bool {
	c := compactDigits(s)
	if len(c) != 13 {
		return false
	}
	total := 0
	for i := 0; i < 12; i++ {
		d := int(c[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		total += d
	}
	check := (10 - total%10) % 10
	return check == int(c[12]-'0')
}

// IsValidISSN reports whether s is a checksum-valid ISSN.
//
// Description:
//
//	Eight characters, weighted 8..1; 'X' counts as 10 but only in the final
//	position. Valid iff the sum is ≡ 0 mod 11.
func IsValidISSN(s string) bool {
	c := compactDigitsX(s)
	if len(c) != 8 {
		return false
	}
	total := 0
	for i, ch := range c {
		var val int
		switch {
		case ch == 'X':
			if i != 7 {
				return false
			}
			val = 10
		default:
			val = int(ch - '0')
		}
		total += (8 - i) * val
	}
	return total%11 == 0
}

// ExpandSBN promotes a bare 9-digit SBN to an ISBN-10 by left-padding with
// '0' and revalidating.
//
// Outputs:
//   - string: The padded 10-digit compact form when the checksum holds.
//   - bool: False when digits9 is not nine digits or the padded form fails
//     validation; the candidate yields no identifier in that case.
func ExpandSBN(digits9 string) (string, bool) {
	if len(digits9) != 9 {
		return "", false
	}
	padded := "0" + digits9
	if !IsValidISBN10(padded) {
		return "", false
	}
	return padded, true
}
