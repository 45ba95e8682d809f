// Package blob stores change lists too large to keep inline on a diff record.
package blob

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// ObjectName is the file name of an overflowed change list.
const ObjectName = "full_diffs.json.gz"

// Key returns "{prefix}/{env}/{diffID}/full_diffs.json.gz".
func Key(prefix, env, diffID string) string {
	return path.Join(prefix, env, diffID, ObjectName)
}

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeChanges reads a change list written by the processor. Gzipped and
// plain JSON input are both accepted.
func DecodeChanges(data []byte) ([]domain.Change, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
	}

	var changes []domain.Change
	if err := json.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}
	return changes, nil
}
