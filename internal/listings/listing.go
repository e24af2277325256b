// Package listings describes the accommodations table that searches run
// against, plus the data that fills it: a fixed sample set, a seeded
// synthetic generator and a parquet snapshot codec.
package listings

import "strings"

const TableName = "accommodations"

var RoomTypes = []string{"pg", "1rk", "1bhk", "3bhk"}

type Accommodation struct {
	ID                    int64   `json:"id" parquet:"id"`
	Type                  string  `json:"type" parquet:"type"`
	Rent                  int64   `json:"rent" parquet:"rent"`
	Location              string  `json:"location" parquet:"location"`
	DistanceFromCollegeKM float64 `json:"distance_from_college_km" parquet:"distance_from_college_km"`
	Furnished             bool    `json:"furnished" parquet:"furnished"`
	NonAlcoholic          bool    `json:"non_alcoholic" parquet:"non_alcoholic"`
	SmokingAllowed        bool    `json:"smoking_allowed" parquet:"smoking_allowed"`
	SafetyRating          int64   `json:"safety_rating" parquet:"safety_rating"`
	RoommatesAllowed      bool    `json:"roommates_allowed" parquet:"roommates_allowed"`
	Available             bool    `json:"available" parquet:"available"`
}

// Column is one entry of the schema shown to the completion model.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

var Columns = []Column{
	{Name: "id", Type: "integer", Description: "primary key"},
	{Name: "type", Type: "text", Description: "values: 'pg' (paying guest), '1rk', '1bhk', '3bhk'"},
	{Name: "rent", Type: "integer", Description: "monthly rent in rupees"},
	{Name: "location", Type: "text", Description: "area name, e.g. 'Viman Nagar', 'Powai', 'Koramangala'"},
	{Name: "distance_from_college_km", Type: "float", Description: "distance in kilometers"},
	{Name: "furnished", Type: "boolean", Description: "true if furnished"},
	{Name: "non_alcoholic", Type: "boolean", Description: "true if alcohol not allowed"},
	{Name: "smoking_allowed", Type: "boolean", Description: "true if smoking allowed"},
	{Name: "safety_rating", Type: "integer", Description: "1-5, 5 being safest"},
	{Name: "roommates_allowed", Type: "boolean", Description: "true if roommates allowed"},
	{Name: "available", Type: "boolean", Description: "true if currently available"},
}

// SchemaDescription is the table description embedded in generation prompts.
func SchemaDescription() string {
	var b strings.Builder
	b.WriteString("Table: ")
	b.WriteString(TableName)
	b.WriteString("\nColumns:\n")
	for _, column := range Columns {
		b.WriteString("- ")
		b.WriteString(column.Name)
		b.WriteString(": ")
		b.WriteString(column.Type)
		b.WriteString(" (")
		b.WriteString(column.Description)
		b.WriteString(")\n")
	}
	return b.String()
}
