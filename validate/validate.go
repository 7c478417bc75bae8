// Package validate implements the text validation used by the validator unit.
package validate

import "regexp"

// Alphanumeric matches text made only of ASCII letters, digits and whitespace.
const Alphanumeric = `^[a-zA-Z0-9\s]+$`

// InvalidMessage is returned for text that fails validation.
const InvalidMessage = "INVALID: Text contains non-alphanumeric characters"

// FirstMatch returns the leftmost match of pattern in text. An invalid pattern or no match yields "".
func FirstMatch(pattern, text string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ""
	}

	return re.FindString(text)
}

// Text validates text against [Alphanumeric] and reports whether it passed along with the message to show.
func Text(text string) (bool, string) {
	match := FirstMatch(Alphanumeric, text)
	if match == "" {
		return false, InvalidMessage
	}

	return true, "VALID: " + match
}
