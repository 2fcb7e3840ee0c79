package artifact

import (
	"context"
	"fmt"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/db"
)

// Registry is the read side of the model artifact table.
type Registry interface {
	GetModelArtifact(ctx context.Context, name string) (*db.ModelArtifact, error)
	GetModelArtifactVersion(ctx context.Context, name string, version int) (*db.ModelArtifact, error)
}

// PostgresSource reads the artifact from the model registry. Version 0 means
// the newest version.
type PostgresSource struct {
	Registry Registry
	Name     string
	Version  int
}

func (s PostgresSource) Fetch(ctx context.Context) (*Blob, error) {
	var (
		a   *db.ModelArtifact
		err error
	)
	if s.Version > 0 {
		a, err = s.Registry.GetModelArtifactVersion(ctx, s.Name, s.Version)
	} else {
		a, err = s.Registry.GetModelArtifact(ctx, s.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", s.Name, err)
	}
	return &Blob{
		Name:   fmt.Sprintf("%s@%d", a.Name, a.Version),
		Format: Format(a.Format),
		Data:   a.Body,
	}, nil
}

func (s PostgresSource) String() string {
	if s.Version > 0 {
		return fmt.Sprintf("postgres:%s@%d", s.Name, s.Version)
	}
	return "postgres:" + s.Name
}
