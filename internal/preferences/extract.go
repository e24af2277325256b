package preferences

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	budgetPattern = regexp.MustCompile(`under\s+(\d{4,5})|below\s+(\d{4,5})|(\d{4,5})`)
	anyBudget     = regexp.MustCompile(`\d{4,5}`)
	pgPattern     = regexp.MustCompile(`\bpg\b|paying guest`)
)

// knownLocations is checked in order; the first match wins.
var knownLocations = []string{
	"andheri", "bandra", "powai", "malad", "borivali", "thane", "mumbai",
	"viman nagar", "hinjewadi", "koregaon park", "wakad", "baner", "pune",
	"koramangala", "indiranagar", "electronic city", "whitefield", "bangalore",
}

var roomTypes = []struct {
	value    string
	phrases  []string
	matchPat *regexp.Regexp
}{
	{value: "pg", matchPat: pgPattern},
	{value: "1rk", phrases: []string{"1rk", "1 rk"}},
	{value: "1bhk", phrases: []string{"1bhk", "1 bhk"}},
	{value: "3bhk", phrases: []string{"3bhk", "3 bhk"}},
}

// Extract returns prefs updated with whatever the query states about budget,
// location, room type and lifestyle. prefs is not modified.
func Extract(query string, prefs Preferences) Preferences {
	out := prefs.Clone()
	q := strings.ToLower(query)

	if groups := budgetPattern.FindStringSubmatch(q); groups != nil {
		for _, group := range groups[1:] {
			if group == "" {
				continue
			}
			if budget, err := strconv.Atoi(group); err == nil {
				out[KeyBudget] = budget
			}
			break
		}
	}

	for _, location := range knownLocations {
		if strings.Contains(q, location) {
			out[KeyPreferredLocation] = titleCase(location)
			break
		}
	}

	for _, room := range roomTypes {
		if room.matchPat != nil && room.matchPat.MatchString(q) || containsAny(q, room.phrases...) {
			out[KeyRoomType] = room.value
			break
		}
	}

	switch {
	case containsAny(q, "non-alcoholic", "no alcohol", "alcohol free", "alcohol-free"):
		out[KeyNonAlcoholic] = true
	case containsAny(q, "alcohol allowed", "drinking allowed"):
		out[KeyNonAlcoholic] = false
	}

	switch {
	case strings.Contains(q, "unfurnished"):
		out[KeyFurnished] = false
	case strings.Contains(q, "furnished"):
		out[KeyFurnished] = true
	}

	switch {
	case containsAny(q, "no smoking", "smoking not allowed", "smoke-free", "smoke free"):
		out[KeySmokingAllowed] = false
	case strings.Contains(q, "smoking") && containsAny(q, "allowed", "ok"):
		out[KeySmokingAllowed] = true
	}

	return out
}

// Enrich appends remembered preferences that the query does not already
// mention, so a follow-up such as "anything cheaper?" keeps its context.
func Enrich(query string, prefs Preferences) string {
	parts := []string{query}
	q := strings.ToLower(query)

	if room, ok := prefs.String(KeyRoomType); ok && !strings.Contains(q, strings.ToLower(room)) {
		parts = append(parts, room+" accommodation")
	}
	if location, ok := prefs.String(KeyPreferredLocation); ok {
		lower := strings.ToLower(location)
		if !strings.Contains(q, lower) && !strings.Contains(q, strings.ReplaceAll(lower, " ", "")) {
			parts = append(parts, "in "+location)
		}
	}
	if budget, ok := prefs.Int(KeyBudget); ok && budget > 0 && !anyBudget.MatchString(q) {
		parts = append(parts, "under "+strconv.Itoa(budget))
	}
	if value, ok := prefs.Bool(KeyNonAlcoholic); ok && !strings.Contains(q, "alcohol") {
		if value {
			parts = append(parts, "alcohol-free accommodation")
		} else {
			parts = append(parts, "alcohol allowed accommodation")
		}
	}
	if value, ok := prefs.Bool(KeySmokingAllowed); ok && !strings.Contains(q, "smok") {
		if value {
			parts = append(parts, "smoking friendly accommodation")
		} else {
			parts = append(parts, "smoke-free accommodation")
		}
	}
	if value, ok := prefs.Bool(KeyFurnished); ok && !strings.Contains(q, "furnished") {
		if value {
			parts = append(parts, "furnished accommodation")
		} else {
			parts = append(parts, "unfurnished accommodation")
		}
	}
	return strings.Join(parts, " ")
}

func containsAny(text string, phrases ...string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func titleCase(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
