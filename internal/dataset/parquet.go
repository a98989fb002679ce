// Package dataset stages detection rows as parquet files in the object store
// so the query engines can read them as a table.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Detection is one labelled detection sample from a recorded clip.
type Detection struct {
	VehicleType string    `json:"vehicle_type" parquet:"vehicle_type"`
	ClipName    string    `json:"clip_name" parquet:"clip_name"`
	Distance    float64   `json:"distance" parquet:"distance"`
	Detection   bool      `json:"detection" parquet:"detection"`
	CapturedAt  time.Time `json:"captured_at" parquet:"captured_at,timestamp"`
}

type EncodeResult struct {
	Data        []byte
	RecordCount int64
	MinDistance float64
	MaxDistance float64
}

// DecodeDetections reads a JSON array of detections.
func DecodeDetections(r io.Reader) ([]Detection, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	var rows []Detection
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	for i, row := range rows {
		if strings.TrimSpace(row.VehicleType) == "" {
			return nil, fmt.Errorf("detection %d: vehicle_type is required", i)
		}
		if strings.TrimSpace(row.ClipName) == "" {
			return nil, fmt.Errorf("detection %d: clip_name is required", i)
		}
		if row.Distance < 0 {
			return nil, fmt.Errorf("detection %d: distance must be >= 0, got %v", i, row.Distance)
		}
	}
	return rows, nil
}

func EncodeParquet(rows []Detection) (EncodeResult, error) {
	if len(rows) == 0 {
		return EncodeResult{}, fmt.Errorf("detections are required")
	}

	result := EncodeResult{RecordCount: int64(len(rows)), MinDistance: rows[0].Distance, MaxDistance: rows[0].Distance}
	normalized := make([]Detection, 0, len(rows))
	for _, row := range rows {
		if row.Distance < result.MinDistance {
			result.MinDistance = row.Distance
		}
		if row.Distance > result.MaxDistance {
			result.MaxDistance = row.Distance
		}
		row.CapturedAt = row.CapturedAt.UTC()
		normalized = append(normalized, row)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Detection](buf)
	if _, err := writer.Write(normalized); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	result.Data = buf.Bytes()
	return result, nil
}
