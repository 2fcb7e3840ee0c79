package db

import "time"

type ModelArtifact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Format    string    `json:"format"`
	Body      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
