package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/poiesic/datajobs/core"
)

// FileSink writes each batch to its own JSON-lines file under
// <dir>/<target>/<table>/<collection>-<uuid>.jsonl.
type FileSink struct {
	dir string
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates a file sink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// FileFactory returns a Factory for a file sink rooted at dir.
func FileFactory(dir string) Factory {
	return func(context.Context) (Sink, error) {
		if dir == "" {
			return nil, core.ConfigError(fmt.Errorf("file sink: output directory required"))
		}
		return NewFileSink(dir), nil
	}
}

// Ingest writes payloads to a new file and records its path in the metadata.
func (s *FileSink) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	data, err := EncodeJSONLines(payloads)
	if err != nil {
		return md, err
	}

	dir := filepath.Join(s.dir, SanitizeSegment(dest.Target, "default"), SanitizeSegment(dest.Table, "default"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return md, core.PlatformError(err)
	}

	name := fmt.Sprintf("%s-%s.jsonl", SanitizeSegment(dest.CollectionID, "batch"), uuid.NewString())
	path := filepath.Join(dir, name)
	// write to a temp name so readers never observe a partial batch
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return md, core.PlatformError(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return md, core.PlatformError(err)
	}

	md.Set(MetaFilePath, path)
	return md, nil
}
