package listings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nestquery/nestquery/internal/storage"
)

func TestSchemaDescriptionListsEveryColumn(t *testing.T) {
	desc := SchemaDescription()
	if !strings.HasPrefix(desc, "Table: accommodations\nColumns:\n") {
		t.Fatalf("SchemaDescription() = %q", desc)
	}
	for _, column := range Columns {
		if !strings.Contains(desc, "- "+column.Name+": ") {
			t.Fatalf("SchemaDescription() missing column %q", column.Name)
		}
	}
}

func TestSampleAccommodationsAreAvailable(t *testing.T) {
	samples := SampleAccommodations()
	if len(samples) != 12 {
		t.Fatalf("len(samples) = %d", len(samples))
	}
	for _, acc := range samples {
		if !acc.Available || acc.SafetyRating < 1 || acc.SafetyRating > 5 {
			t.Fatalf("invalid sample %+v", acc)
		}
	}
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	a := NewGenerator(42).Generate(20)
	b := NewGenerator(42).Generate(20)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different listings")
	}
	for _, acc := range a {
		if acc.Rent < 6000 || acc.Rent > 28000 {
			t.Fatalf("rent out of range: %d", acc.Rent)
		}
		if acc.DistanceFromCollegeKM < 0.5 || acc.DistanceFromCollegeKM > 12 {
			t.Fatalf("distance out of range: %v", acc.DistanceFromCollegeKM)
		}
		if acc.SafetyRating < 1 || acc.SafetyRating > 5 {
			t.Fatalf("safety out of range: %d", acc.SafetyRating)
		}
	}
	if NewGenerator(1).Generate(0) != nil {
		t.Fatal("Generate(0) should return nil")
	}
}

func TestParquetRoundTrip(t *testing.T) {
	rows := SampleAccommodations()[:3]
	for i := range rows {
		rows[i].ID = int64(i + 1)
	}
	encoded, err := EncodeParquet(rows)
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}
	if encoded.RecordCount != 3 {
		t.Fatalf("RecordCount = %d", encoded.RecordCount)
	}
	decoded, err := DecodeParquet(bytes.NewReader(encoded.Data), int64(len(encoded.Data)))
	if err != nil {
		t.Fatalf("DecodeParquet() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, rows) {
		t.Fatalf("decoded = %+v, want %+v", decoded, rows)
	}
}

type staticSource struct {
	rows []Accommodation
	err  error
}

func (s staticSource) ListAvailable(context.Context, int) ([]Accommodation, error) {
	return s.rows, s.err
}

func TestPublisherWritesLatestAndArchive(t *testing.T) {
	store := storage.NewMemoryStore()
	publisher := NewPublisher(staticSource{rows: SampleAccommodations()}, store, "snapshots/accommodations/latest.parquet")
	publisher.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	info, err := publisher.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if info.RecordCount != 12 || info.SizeBytes == 0 {
		t.Fatalf("Publish() info = %+v", info)
	}
	if info.ArchiveKey != "snapshots/accommodations/archive/date=2026-03-01/snapshot-20260301T100000Z.parquet" {
		t.Fatalf("ArchiveKey = %q", info.ArchiveKey)
	}

	for _, key := range []string{info.Key, info.ArchiveKey} {
		reader, err := store.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", key, err)
		}
		data, _ := io.ReadAll(reader)
		rows, err := DecodeParquet(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			t.Fatalf("DecodeParquet(%q) error = %v", key, err)
		}
		if len(rows) != 12 {
			t.Fatalf("rows in %q = %d", key, len(rows))
		}
	}
}

func TestPublisherPropagatesSourceErrors(t *testing.T) {
	publisher := NewPublisher(staticSource{err: errors.New("db down")}, storage.NewMemoryStore(), "latest.parquet")
	if _, err := publisher.Publish(context.Background()); err == nil {
		t.Fatal("expected error from failing source")
	}
}
