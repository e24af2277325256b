package listings

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

type ParquetEncodeResult struct {
	Data        []byte
	RecordCount int64
}

// EncodeParquet writes listings as a single parquet file whose columns match
// the accommodations table.
func EncodeParquet(rows []Accommodation) (ParquetEncodeResult, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Accommodation](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return ParquetEncodeResult{Data: buf.Bytes(), RecordCount: int64(len(rows))}, nil
}

func DecodeParquet(r io.ReaderAt, size int64) ([]Accommodation, error) {
	rows, err := parquet.Read[Accommodation](r, size)
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows, nil
}
