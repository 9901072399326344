// Package i18n provides message templates in the languages Tree
// Logistics drivers actually write in: English, Albanian and German.
// Detection is keyword-based; English is the fallback.
package i18n

import (
	"fmt"
	"strings"

	"github.com/treelogistics/driverdesk/internal/models"
)

// Language is an ISO 639-1 code for a supported driver language.
type Language string

const (
	English  Language = "en"
	Albanian Language = "sq"
	German   Language = "de"
)

// Marker words that only occur in one of the supported languages.
// Short function words are deliberately avoided; they collide across
// languages and with names.
var markers = map[Language][]string{
	Albanian: {"pushim", "pushimi", "rroga", "paga", "ndihme", "ndihmë", "faleminderit", "problem me", "dua", "kam nevoje", "kam nevojë", "skaner", "leje"},
	German:   {"urlaub", "gehalt", "lohn", "krank", "kaputt", "bitte", "danke", "ich brauche", "ich habe", "fahrzeug", "geht nicht"},
}

// detectionOrder fixes the scan order so Detect is deterministic.
var detectionOrder = []Language{Albanian, German}

// Detect guesses the language of a driver message. Ties and no-match
// both resolve to English.
func Detect(text string) Language {
	lower := strings.ToLower(text)
	best := English
	bestScore := 0
	for _, lang := range detectionOrder {
		score := 0
		for _, w := range markers[lang] {
			if strings.Contains(lower, w) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best = lang
			bestScore = score
		case score == bestScore && score > 0:
			best = English
		}
	}
	return best
}

// Acknowledgment is sent when a request has been filed, confirming the
// reference id the driver can quote later.
func Acknowledgment(lang Language, firstName, rowID string, category models.RequestCategory) string {
	switch lang {
	case Albanian:
		return fmt.Sprintf("✅ Faleminderit %s! Kërkesa juaj (%s) u regjistrua te ekipi %s. Do t'ju njoftojmë sapo të përfundojë.", firstName, rowID, category)
	case German:
		return fmt.Sprintf("✅ Danke %s! Deine Anfrage (%s) wurde beim Team %s eingereicht. Wir melden uns, sobald sie erledigt ist.", firstName, rowID, category)
	default:
		return fmt.Sprintf("✅ Thank you %s! Your request (%s) has been filed with the %s team. We will let you know as soon as it is done.", firstName, rowID, category)
	}
}

// Completion is sent by the status monitor when the back office marks a
// request done.
func Completion(lang Language, firstName string, category models.RequestCategory) string {
	switch lang {
	case Albanian:
		return fmt.Sprintf("🎉 %s, kërkesa juaj për %s u përfundua nga ekipi i Tree Logistics!", firstName, category)
	case German:
		return fmt.Sprintf("🎉 %s, deine %s-Anfrage wurde vom Tree Logistics Team erledigt!", firstName, category)
	default:
		return fmt.Sprintf("🎉 %s, your %s request has been completed by the Tree Logistics team!", firstName, category)
	}
}

// FeedbackPrompt asks for the 1-3 satisfaction rating after completion.
func FeedbackPrompt(lang Language) string {
	switch lang {
	case Albanian:
		return "Si ishte shërbimi ynë?\n1 - 😊 Shumë i kënaqur\n2 - 😐 I kënaqur\n3 - 😞 I pakënaqur"
	case German:
		return "Wie zufrieden bist du mit unserem Service?\n1 - 😊 Sehr zufrieden\n2 - 😐 Zufrieden\n3 - 😞 Unzufrieden"
	default:
		return "How satisfied are you with our service?\n1 - 😊 Very Satisfied\n2 - 😐 Satisfied\n3 - 😞 Not Satisfied"
	}
}
