package listings

// SampleAccommodations is the small seed set used for demos and local runs.
func SampleAccommodations() []Accommodation {
	return []Accommodation{
		sample("pg", 8000, "Viman Nagar", 2.5, true, false, true, 4, true),
		sample("pg", 9500, "Koregaon Park", 1.8, false, true, false, 5, true),
		sample("1rk", 12000, "Baner", 3.2, true, false, false, 4, false),
		sample("pg", 7500, "Kharadi", 4.1, true, true, false, 3, true),
		sample("1bhk", 15000, "Wakad", 5.0, true, false, true, 4, true),

		sample("pg", 11000, "Andheri", 1.5, true, true, false, 4, true),
		sample("pg", 9000, "Malad", 2.8, false, false, true, 3, true),
		sample("1rk", 18000, "Bandra", 0.8, true, true, false, 5, false),
		sample("pg", 8500, "Powai", 3.5, true, false, false, 4, true),

		sample("pg", 9000, "Koramangala", 2.0, true, false, true, 4, true),
		sample("1bhk", 16000, "Indiranagar", 1.2, true, true, false, 5, true),
		sample("pg", 7000, "Electronic City", 8.5, false, false, true, 3, true),
	}
}

func sample(kind string, rent int64, location string, distance float64, furnished, nonAlcoholic, smoking bool, safety int64, roommates bool) Accommodation {
	return Accommodation{
		Type:                  kind,
		Rent:                  rent,
		Location:              location,
		DistanceFromCollegeKM: distance,
		Furnished:             furnished,
		NonAlcoholic:          nonAlcoholic,
		SmokingAllowed:        smoking,
		SafetyRating:          safety,
		RoommatesAllowed:      roommates,
		Available:             true,
	}
}
