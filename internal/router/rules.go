package router

import (
	"regexp"
	"strings"

	"github.com/treelogistics/driverdesk/internal/models"
)

// categoryKeywords drive the rule-based classifier. Checked in order,
// most specific first; the first category with any keyword hit wins.
var categoryKeywords = []struct {
	category models.RequestCategory
	words    []string
}{
	{models.CategoryEquipment, []string{"scanner", "sim", "uniform", "cable", "battery", "equipment", "charger"}},
	{models.CategorySalary, []string{"salary", "payment", "paid", "wage", "payslip", "money", "eur", "iban"}},
	{models.CategoryVacation, []string{"vacation", "holiday", "time off", "leave", "days off", "absence", "sick"}},
	{models.CategoryVehicle, []string{"vehicle", "van", "truck", "car", "damage", "accident", "fuel", "maintenance"}},
	{models.CategorySchedule, []string{"schedule", "shift", "route", "tour", "start time"}},
	{models.CategoryPerformance, []string{"performance", "rating", "score", "feedback", "warning"}},
}

var (
	dateEntity = regexp.MustCompile(`\d{1,2}\s*[./-]\s*\d{1,2}(\s*[./-]\s*\d{2,4})?`)
	ibanEntity = regexp.MustCompile(`(?i)\b[a-z]{2}\d{2}[\s\d]{8,32}\b`)
)

// ruleBasedIntent classifies text by ordered keyword containment: the
// first category with a hit wins, and its hit count scales confidence.
// It always returns an intent; with no hits the category is General at
// low confidence.
func ruleBasedIntent(text string) models.Intent {
	lower := strings.ToLower(text)

	category := models.CategoryGeneral
	hits := 0
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > 0 {
			category = ck.category
			break
		}
	}

	confidence := 0.3
	if hits > 0 {
		confidence = 0.7 + 0.1*float64(hits-1)
		if confidence > 0.95 {
			confidence = 0.95
		}
	}

	return models.Intent{
		Category:      category,
		Confidence:    confidence,
		ExtractedInfo: extractEntities(text),
	}
}

// extractEntities pulls structured tokens the back office can use
// without rereading the message.
func extractEntities(text string) map[string]string {
	info := make(map[string]string)
	if m := ibanEntity.FindString(text); m != "" {
		info["iban"] = strings.TrimSpace(m)
	} else if dates := dateEntity.FindAllString(text, 2); len(dates) > 0 {
		info["dates"] = strings.Join(dates, " - ")
	}
	if len(info) == 0 {
		return nil
	}
	return info
}
