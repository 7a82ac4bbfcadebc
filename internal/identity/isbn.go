package identity

import "strings"

// CleanISBN strips hyphens and spaces from an ISBN and uppercases a
// trailing check character.
func CleanISBN(isbn string) string {
	cleaned := strings.ReplaceAll(isbn, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	return strings.ToUpper(cleaned)
}

// isDigits reports whether s is non-empty and contains only ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidISBN13 reports whether the cleaned string is a plausible ISBN-13.
func ValidISBN13(isbn string) bool {
	return len(isbn) == 13 && isDigits(isbn)
}

// ValidISBN10 reports whether the cleaned string is a plausible ISBN-10.
// The last position may be the X check character.
func ValidISBN10(isbn string) bool {
	if len(isbn) != 10 {
		return false
	}
	body, check := isbn[:9], isbn[9]
	if !isDigits(body) {
		return false
	}
	return check == 'X' || (check >= '0' && check <= '9')
}

// ISBN13To10 converts an ISBN-13 to its ISBN-10 form. Conversion is only
// defined for the Bookland prefixes 978 and 979; anything else, or any
// input that is not exactly 13 digits after cleaning, returns "".
func ISBN13To10(isbn13 string) string {
	cleaned := CleanISBN(isbn13)
	if !ValidISBN13(cleaned) {
		return ""
	}
	if !strings.HasPrefix(cleaned, "978") && !strings.HasPrefix(cleaned, "979") {
		return ""
	}

	// Drop the prefix and the ISBN-13 check digit, then recompute the
	// ISBN-10 check over the remaining 9 digits with weights 10 down to 2.
	body := cleaned[3:12]
	sum := 0
	for i, r := range body {
		sum += int(r-'0') * (10 - i)
	}

	check := (11 - sum%11) % 11
	if check == 10 {
		return body + "X"
	}
	return body + string(rune('0'+check))
}
