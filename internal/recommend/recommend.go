// Package recommend ranks listings with a transparent weighted score:
//
//	score = 0.35 rent + 0.25 distance + 0.20 safety + 0.10 furnished + 0.10 lifestyle
//
// Every component is normalised to [0, 1] and each result carries the reasons
// that drove its score.
package recommend

import (
	"math"
	"sort"
	"strings"

	"github.com/nestquery/nestquery/internal/listings"
	"github.com/nestquery/nestquery/internal/preferences"
)

const (
	DefaultLimit = 5

	weightRent      = 0.35
	weightDistance  = 0.25
	weightSafety    = 0.20
	weightFurnished = 0.10
	weightLifestyle = 0.10

	distanceCapKM  = 10.0
	fallbackBudget = 15000
)

type Recommendation struct {
	listings.Accommodation
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Rank scores every listing against prefs and returns the best limit results,
// highest score first. Ties keep input order.
func Rank(candidates []listings.Accommodation, prefs preferences.Preferences, limit int) []Recommendation {
	if limit <= 0 {
		limit = DefaultLimit
	}
	maxBudget := budgetFor(candidates, prefs)

	out := make([]Recommendation, 0, len(candidates))
	for _, acc := range candidates {
		out = append(out, score(acc, prefs, maxBudget))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// budgetFor prefers an explicit max_budget, then budget, then 1.5x the most
// expensive candidate.
func budgetFor(candidates []listings.Accommodation, prefs preferences.Preferences) float64 {
	for _, key := range []string{preferences.KeyMaxBudget, preferences.KeyBudget} {
		if budget, ok := prefs.Int(key); ok && budget > 0 {
			return float64(budget)
		}
	}
	if len(candidates) == 0 {
		return fallbackBudget
	}
	var highest int64
	for _, acc := range candidates {
		if acc.Rent > highest {
			highest = acc.Rent
		}
	}
	if highest <= 0 {
		return fallbackBudget
	}
	return math.Floor(float64(highest) * 1.5)
}

func score(acc listings.Accommodation, prefs preferences.Preferences, maxBudget float64) Recommendation {
	rentScore := math.Max(0, 1-float64(acc.Rent)/maxBudget)
	distanceScore := math.Max(0, 1-acc.DistanceFromCollegeKM/distanceCapKM)
	safetyScore := float64(acc.SafetyRating) / 5

	furnishedBonus := 0.0
	if acc.Furnished {
		furnishedBonus = 1
	}

	lifestyleBonus := 1.0
	wantsNoAlcohol, alcoholSet := prefs.Bool(preferences.KeyNonAlcoholic)
	switch {
	case alcoholSet && wantsNoAlcohol && !acc.NonAlcoholic:
		lifestyleBonus = 0
	case alcoholSet && !wantsNoAlcohol && acc.NonAlcoholic:
		lifestyleBonus = 0.5
	}
	wantsSmoking, smokingSet := prefs.Bool(preferences.KeySmokingAllowed)
	switch {
	case smokingSet && wantsSmoking && !acc.SmokingAllowed:
		lifestyleBonus *= 0.5
	case smokingSet && !wantsSmoking && acc.SmokingAllowed:
		lifestyleBonus *= 0.7
	}
	if wantsFurnished, ok := prefs.Bool(preferences.KeyFurnished); ok {
		switch {
		case wantsFurnished && !acc.Furnished:
			furnishedBonus *= 0.5
		case !wantsFurnished && acc.Furnished:
			furnishedBonus *= 0.7
		}
	}

	total := weightRent*rentScore +
		weightDistance*distanceScore +
		weightSafety*safetyScore +
		weightFurnished*furnishedBonus +
		weightLifestyle*lifestyleBonus

	var reasons []string
	switch {
	case rentScore > 0.7:
		reasons = append(reasons, "Affordable rent")
	case rentScore > 0.5:
		reasons = append(reasons, "Reasonable rent")
	}
	switch {
	case distanceScore > 0.7:
		reasons = append(reasons, "Close to college")
	case distanceScore > 0.5:
		reasons = append(reasons, "Moderate distance")
	}
	switch {
	case safetyScore > 0.6:
		reasons = append(reasons, "Good safety rating")
	case safetyScore > 0.4:
		reasons = append(reasons, "Average safety")
	}
	if furnishedBonus > 0.5 {
		reasons = append(reasons, "Furnished")
	}
	switch {
	case lifestyleBonus > 0.7:
		reasons = append(reasons, "Perfect lifestyle match")
	case lifestyleBonus > 0.5:
		reasons = append(reasons, "Good lifestyle match")
	}
	if alcoholSet && wantsNoAlcohol && acc.NonAlcoholic {
		reasons = append(reasons, "Alcohol-free environment")
	}
	if smokingSet && !wantsSmoking && !acc.SmokingAllowed {
		reasons = append(reasons, "Smoke-free environment")
	}

	reason := "Basic accommodation"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ", ")
	}
	return Recommendation{
		Accommodation: acc,
		Score:         math.Round(total*100) / 100,
		Reason:        reason,
	}
}
