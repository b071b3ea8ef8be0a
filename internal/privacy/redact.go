// Package privacy redacts subscriber data before it reaches logs or the live feed.
package privacy

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// menuKeyRegex matches tokens a subscriber types to pick a menu option.
	menuKeyRegex = regexp.MustCompile(`^[0-9]{1,2}$`)

	// phoneRegex matches phone numbers embedded in free text.
	phoneRegex = regexp.MustCompile(`\+?[0-9][0-9 ]{7,}[0-9]`)
)

// MaskPhone keeps the last three digits of a number.
func MaskPhone(phone string) string {
	if len(phone) <= 3 {
		return phone
	}
	return "***" + phone[len(phone)-3:]
}

// RedactPath keeps menu keys of a dialed path and replaces typed text with its
// length, e.g. "1*1*2*3*Help I am trapped*1" becomes "1*1*2*3*<text:17>*1".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	tokens := strings.Split(path, "*")
	for i, tok := range tokens {
		if tok == "" || menuKeyRegex.MatchString(tok) {
			continue
		}
		tokens[i] = "<text:" + strconv.Itoa(len([]rune(tok))) + ">"
	}
	return strings.Join(tokens, "*")
}

// StripPhones masks phone numbers inside free text.
func StripPhones(text string) string {
	return phoneRegex.ReplaceAllStringFunc(text, func(m string) string {
		return MaskPhone(strings.ReplaceAll(m, " ", ""))
	})
}

// Clean prepares free text for logging: phone numbers masked, whitespace trimmed.
func Clean(text string) string {
	return strings.TrimSpace(StripPhones(text))
}
