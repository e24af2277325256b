package listings

import (
	"math"
	"math/rand"
)

var generatorLocations = []string{"Andheri", "Bandra", "Powai", "Viman Nagar", "Hinjewadi"}

// Generator produces synthetic listings. The same seed yields the same
// sequence.
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Next() Accommodation {
	return Accommodation{
		Type:                  pickOne(g.rnd, RoomTypes),
		Rent:                  int64(6000 + g.rnd.Intn(22001)),
		Location:              pickOne(g.rnd, generatorLocations),
		DistanceFromCollegeKM: round2(0.5 + g.rnd.Float64()*11.5),
		Furnished:             g.rnd.Intn(2) == 0,
		NonAlcoholic:          g.rnd.Intn(2) == 0,
		SmokingAllowed:        g.rnd.Intn(2) == 0,
		SafetyRating:          int64(1 + g.rnd.Intn(5)),
		RoommatesAllowed:      g.rnd.Intn(2) == 0,
		// Three in four listings are open.
		Available: g.rnd.Intn(4) != 0,
	}
}

func (g *Generator) Generate(n int) []Accommodation {
	if n <= 0 {
		return nil
	}
	out := make([]Accommodation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
