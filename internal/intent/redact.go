package intent

import "regexp"

var (
	emailRe    = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phoneRe    = regexp.MustCompile(`\+?\d[\d\s()-]{7,}\d`)
	nameLikeRe = regexp.MustCompile(`\b[A-Z][a-z]+\s[A-Z][a-z]+\b`)
)

// Redact strips anything that looks like an email, phone number, or
// full name before the utterance is allowed to cross the boundary to
// the classifier (spec §4.10: "only ids, dates, integers, and the
// user's utterance with identifiers masked are passed").
func Redact(text string) string {
	text = emailRe.ReplaceAllString(text, "[redacted-email]")
	text = phoneRe.ReplaceAllString(text, "[redacted-phone]")
	text = nameLikeRe.ReplaceAllString(text, "[redacted-name]")
	return text
}
