package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/nestquery/nestquery/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// Source lists the listings that go into a snapshot.
type Source interface {
	ListAvailable(ctx context.Context, limit int) ([]Accommodation, error)
}

type SnapshotInfo struct {
	Key         string    `json:"key"`
	ArchiveKey  string    `json:"archive_key"`
	RecordCount int64     `json:"record_count"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher copies the available listings into object storage as parquet.
// The latest snapshot is overwritten in place and a timestamped copy is kept
// next to it.
type Publisher struct {
	source Source
	store  storage.Writer
	key    string
	now    func() time.Time
}

func NewPublisher(source Source, store storage.Writer, key string) *Publisher {
	return &Publisher{
		source: source,
		store:  store,
		key:    key,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Publish(ctx context.Context) (SnapshotInfo, error) {
	if p.source == nil || p.store == nil {
		return SnapshotInfo{}, fmt.Errorf("snapshot publisher is not configured")
	}
	publishedAt := p.now()
	archiveKey, err := storage.BuildSnapshotArchiveKey(p.key, publishedAt)
	if err != nil {
		return SnapshotInfo{}, err
	}

	rows, err := p.source.ListAvailable(ctx, 0)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("load listings for snapshot: %w", err)
	}
	encoded, err := EncodeParquet(rows)
	if err != nil {
		return SnapshotInfo{}, err
	}

	size := int64(len(encoded.Data))
	if _, err := storage.PutBytes(ctx, p.store, archiveKey, encoded.Data, parquetContentType); err != nil {
		return SnapshotInfo{}, fmt.Errorf("archive snapshot: %w", err)
	}
	info, err := storage.PutBytes(ctx, p.store, p.key, encoded.Data, parquetContentType)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("publish snapshot: %w", err)
	}

	return SnapshotInfo{
		Key:         p.key,
		ArchiveKey:  archiveKey,
		RecordCount: encoded.RecordCount,
		SizeBytes:   size,
		ETag:        info.ETag,
		PublishedAt: publishedAt,
	}, nil
}
