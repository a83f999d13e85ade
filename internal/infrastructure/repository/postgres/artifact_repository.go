package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

type ArtifactRepository struct {
	db *sql.DB
}

func NewArtifactRepository(db *sql.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

func (r *ArtifactRepository) Create(ctx context.Context, artifact *domain.Artifact) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO artifacts (id, type, filename, mime_type, storage_path, uploaded_by, uploaded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		artifact.ID, string(artifact.Type), artifact.Filename, artifact.MimeType,
		artifact.StoragePath, artifact.UploadedBy, artifact.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) GetByID(ctx context.Context, id string) (*domain.Artifact, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, type, filename, mime_type, storage_path, uploaded_by, uploaded_at
FROM artifacts
WHERE id = $1
`, id)

	var artifact domain.Artifact
	var artifactType string
	err := row.Scan(
		&artifact.ID, &artifactType, &artifact.Filename, &artifact.MimeType,
		&artifact.StoragePath, &artifact.UploadedBy, &artifact.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrArtifactNotFound, "get artifact", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	artifact.Type = domain.ArtifactType(artifactType)
	return &artifact, nil
}
