package domain

import (
	"fmt"
	"strings"
	"time"
)

type ArtifactType string

const (
	ArtifactInvoice ArtifactType = "invoice"
	ArtifactLabel   ArtifactType = "label"
	ArtifactManual  ArtifactType = "manual"
	ArtifactPortal  ArtifactType = "portal"
)

// Artifact is one uploaded or captured document. Immutable once created.
type Artifact struct {
	ID          string       `json:"id"`
	Type        ArtifactType `json:"type"`
	Filename    string       `json:"filename"`
	MimeType    string       `json:"mime_type"`
	StoragePath string       `json:"storage_path"`
	UploadedBy  string       `json:"uploaded_by,omitempty"`
	UploadedAt  time.Time    `json:"uploaded_at"`
}

func ParseArtifactType(raw string) (ArtifactType, error) {
	switch ArtifactType(strings.ToLower(strings.TrimSpace(raw))) {
	case ArtifactInvoice:
		return ArtifactInvoice, nil
	case ArtifactLabel:
		return ArtifactLabel, nil
	case ArtifactManual:
		return ArtifactManual, nil
	case ArtifactPortal:
		return ArtifactPortal, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse artifact type", fmt.Errorf("unknown type %q", raw))
	}
}
