package recommend

import (
	"strings"
	"testing"

	"github.com/nestquery/nestquery/internal/listings"
	"github.com/nestquery/nestquery/internal/preferences"
)

func TestRankScoresWithExplicitBudget(t *testing.T) {
	acc := listings.Accommodation{
		ID: 1, Type: "pg", Rent: 5000, Location: "Powai",
		DistanceFromCollegeKM: 2.5, SafetyRating: 5, Furnished: true, NonAlcoholic: true,
	}
	got := Rank([]listings.Accommodation{acc}, preferences.Preferences{"max_budget": 10000, "non_alcoholic": true}, 5)
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	// 0.35*0.5 + 0.25*0.75 + 0.20*1 + 0.10*1 + 0.10*1 = 0.7625
	if got[0].Score != 0.76 {
		t.Fatalf("Score = %v, want 0.76", got[0].Score)
	}
	want := "Close to college, Good safety rating, Furnished, Perfect lifestyle match, Alcohol-free environment"
	if got[0].Reason != want {
		t.Fatalf("Reason = %q, want %q", got[0].Reason, want)
	}
}

func TestRankPenalisesLifestyleMismatch(t *testing.T) {
	drinking := listings.Accommodation{ID: 1, Rent: 8000, DistanceFromCollegeKM: 3, SafetyRating: 4, NonAlcoholic: false, SmokingAllowed: true}
	dry := drinking
	dry.ID = 2
	dry.NonAlcoholic = true
	dry.SmokingAllowed = false

	got := Rank([]listings.Accommodation{drinking, dry}, preferences.Preferences{"non_alcoholic": true, "smoking_allowed": false}, 5)
	if got[0].ID != 2 {
		t.Fatalf("first = %d, want lifestyle match first", got[0].ID)
	}
	if !strings.Contains(got[0].Reason, "Smoke-free environment") {
		t.Fatalf("Reason = %q", got[0].Reason)
	}
	if strings.Contains(got[1].Reason, "lifestyle") {
		t.Fatalf("mismatch should not report lifestyle match: %q", got[1].Reason)
	}
}

func TestRankFallsBackToHighestRentBudget(t *testing.T) {
	candidates := []listings.Accommodation{{Rent: 10000}, {Rent: 20000}}
	if got := budgetFor(candidates, nil); got != 30000 {
		t.Fatalf("budgetFor() = %v, want 30000", got)
	}
	if got := budgetFor(nil, nil); got != fallbackBudget {
		t.Fatalf("budgetFor(nil) = %v", got)
	}
	if got := budgetFor(candidates, preferences.Preferences{"budget": float64(9000)}); got != 9000 {
		t.Fatalf("budgetFor(budget) = %v", got)
	}
}

func TestRankLimitsAndOrders(t *testing.T) {
	candidates := listings.SampleAccommodations()
	got := Rank(candidates, nil, 0)
	if len(got) != DefaultLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultLimit)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
	if got := Rank(candidates, nil, 2); len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestBasicAccommodationReason(t *testing.T) {
	acc := listings.Accommodation{Rent: 15000, DistanceFromCollegeKM: 9, SafetyRating: 1}
	got := Rank([]listings.Accommodation{acc}, preferences.Preferences{"max_budget": 15000, "non_alcoholic": true}, 1)
	if got[0].Reason != "Basic accommodation" {
		t.Fatalf("Reason = %q", got[0].Reason)
	}
}
