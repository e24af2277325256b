package preferences

import (
	"strconv"
	"strings"
)

const emptySummary = "No specific preferences set yet. Tell me what you're looking for!"

// Summary renders a one-line description of the remembered preferences.
func Summary(p Preferences) string {
	var parts []string
	if budget, ok := p.Int(KeyBudget); ok && budget > 0 {
		parts = append(parts, "Budget: ₹"+groupThousands(budget))
	}
	if location, ok := p.String(KeyPreferredLocation); ok {
		parts = append(parts, "Location: "+location)
	}
	if room, ok := p.String(KeyRoomType); ok {
		parts = append(parts, "Type: "+strings.ToUpper(room))
	}
	if value, ok := p.Bool(KeyNonAlcoholic); ok {
		parts = append(parts, pick(value, "No alcohol", "Alcohol allowed"))
	}
	if value, ok := p.Bool(KeyFurnished); ok {
		parts = append(parts, pick(value, "Furnished", "Unfurnished"))
	}
	if value, ok := p.Bool(KeySmokingAllowed); ok {
		parts = append(parts, pick(value, "Smoking allowed", "No smoking"))
	}
	if len(parts) == 0 {
		return emptySummary
	}
	return "Your preferences: " + strings.Join(parts, " | ")
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func groupThousands(n int) string {
	digits := strconv.Itoa(n)
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}
