package flow

import (
	"regexp"
	"strings"

	"github.com/treelogistics/driverdesk/internal/models"
)

// MaxRequestRetries is how many times a driver is asked to rephrase
// before the request is force-accepted as-is. Drivers type on the road;
// endless clarification loops lose them.
const MaxRequestRetries = 1

const minRequestLength = 10

// ValidationResult is the outcome of validating one request message.
// Accepted=false carries a FollowUp question to send back; Accepted=true
// may still carry HelpfulInfo to append to the acknowledgment.
type ValidationResult struct {
	Accepted    bool
	RequestType models.RequestType
	Reason      string
	FollowUp    string
	HelpfulInfo string
}

// ibanPattern matches an IBAN-shaped token: two letters followed by
// at least seven digits, spaces allowed between groups.
var ibanPattern = regexp.MustCompile(`(?i)\b[a-z]{2}\s*\d(?:\s*\d){6,30}\b`)

// datePattern matches numeric dates (12.08, 12/08/2026), month names,
// and from/until ranges written out.
var datePattern = regexp.MustCompile(`(?i)\d{1,2}\s*[./-]\s*\d{1,2}(\s*[./-]\s*\d{2,4})?|` +
	`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b|` +
	`\bfrom\b.{1,40}\b(to|until|till)\b|\b(next|this)\s+(week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b|\btomorrow\b`)

var brokenPattern = regexp.MustCompile(`(?i)\b(broken|not working|doesn'?t work|won'?t (turn on|start|charge)|stopped working|damaged|kaputt|defect)\b`)

// workingPattern catches drivers saying the device is fine, e.g. when
// asking for a spare. Checked after brokenPattern so "not working"
// counts as broken.
var workingPattern = regexp.MustCompile(`(?i)\b(work(s|ing)?|fine|functional|ok(ay)?)\b`)

// vaguePhrases are messages long enough to pass the length check but
// carrying no actionable content. Matched after trimming punctuation.
var vaguePhrases = map[string]bool{
	"i need help":        true,
	"i have a problem":   true,
	"i have a question":  true,
	"can you help me":    true,
	"there is a problem": true,
	"something is wrong": true,
	"it doesnt work":     true,
	"it is not working":  true,
}

// classificationRules are checked in order; the first match wins, so
// a message mentioning both an IBAN and a scanner files as iban_change.
var classificationRules = []struct {
	requestType models.RequestType
	pattern     *regexp.Regexp
}{
	{models.RequestTypeIBANChange, regexp.MustCompile(`(?i)\b(iban|bank account|account number|bank details)\b`)},
	{models.RequestTypeScanner, regexp.MustCompile(`(?i)\bscanner\b`)},
	{models.RequestTypeVacation, regexp.MustCompile(`(?i)\b(vacation|holiday|time off|days? off|leave|absence|sick)\b`)},
	{models.RequestTypeEquipment, regexp.MustCompile(`(?i)\b(sim( card)?|uniform|cable|battery|charger|power ?bank|equipment|device|phone|broken|damaged|defect|kaputt)\b`)},
}

const scannerPickupInfo = "Broken scanners can be swapped at the station office between 06:00 and 14:00. Bring the broken device with you."

// ValidateRequest classifies and checks one request message.
// retryCount is how many times this driver has already been asked to
// rephrase; at MaxRequestRetries the message is accepted as-is so a
// human dispatcher can sort it out.
func ValidateRequest(body string, retryCount int) ValidationResult {
	trimmed := strings.TrimSpace(body)
	requestType := classify(trimmed)

	if retryCount >= MaxRequestRetries {
		return ValidationResult{Accepted: true, RequestType: requestType, Reason: "retry_limit"}
	}

	if len(trimmed) < minRequestLength {
		return ValidationResult{
			Accepted:    false,
			RequestType: requestType,
			Reason:      "too_short",
			FollowUp:    "Could you describe your request in a bit more detail? For example what happened and what you need from us.",
		}
	}

	if vaguePhrases[normalizePhrase(trimmed)] {
		return ValidationResult{
			Accepted:    false,
			RequestType: requestType,
			Reason:      "too_vague",
			FollowUp:    "I want to make sure this reaches the right person. What exactly is the problem or what do you need?",
		}
	}

	switch requestType {
	case models.RequestTypeIBANChange:
		if !ibanPattern.MatchString(trimmed) {
			return ValidationResult{
				Accepted:    false,
				RequestType: requestType,
				Reason:      "iban_missing",
				FollowUp:    "To change your bank details I need the new IBAN. Please send it in one message, for example DE89 3704 0044 0532 0130 00.",
			}
		}
	case models.RequestTypeScanner:
		if brokenPattern.MatchString(trimmed) {
			return ValidationResult{Accepted: true, RequestType: requestType, HelpfulInfo: scannerPickupInfo}
		}
		if !workingPattern.MatchString(trimmed) {
			return ValidationResult{
				Accepted:    false,
				RequestType: requestType,
				Reason:      "scanner_unclear",
				FollowUp:    "Is the scanner broken, or do you need an additional one? A short description of what it does helps the tech team.",
			}
		}
		// Explicitly working, e.g. asking for a spare; nothing to clarify.
	case models.RequestTypeVacation:
		if !datePattern.MatchString(trimmed) {
			return ValidationResult{
				Accepted:    false,
				RequestType: requestType,
				Reason:      "vacation_dates",
				FollowUp:    "Which dates do you need off? Please include the first and last day, for example 12.08 to 16.08.",
			}
		}
	}

	return ValidationResult{Accepted: true, RequestType: requestType}
}

func classify(body string) models.RequestType {
	for _, rule := range classificationRules {
		if rule.pattern.MatchString(body) {
			return rule.requestType
		}
	}
	return models.RequestTypeGeneral
}

func normalizePhrase(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
