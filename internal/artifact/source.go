package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Blob is the raw artifact as fetched from a source.
type Blob struct {
	Name   string
	Format Format
	Data   []byte
}

// Source fetches the raw artifact bytes.
type Source interface {
	Fetch(ctx context.Context) (*Blob, error)
	String() string
}

// Load fetches and decodes an artifact. It is called once at startup.
func Load(ctx context.Context, src Source, logger *slog.Logger) (*Document, error) {
	blob, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact from %s: %w", src, err)
	}
	doc, err := Decode(blob.Data, blob.Format, blob.Name)
	if err != nil {
		return nil, err
	}
	logger.Info("model artifact loaded",
		"source", src.String(),
		"kind", doc.Kind,
		"version", doc.Version,
		"bytes", len(blob.Data),
	)
	return doc, nil
}

// FileSource reads the artifact from local disk.
type FileSource struct {
	Path   string
	Format Format
}

func (s FileSource) Fetch(_ context.Context) (*Blob, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return &Blob{Name: s.Path, Format: s.Format, Data: data}, nil
}

func (s FileSource) String() string { return "file:" + s.Path }
