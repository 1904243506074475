package service

import (
	"context"
	"time"

	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/storage"
	"github.com/meetscribe/api/internal/store"
)

const downloadURLTTL = 15 * time.Minute

// ArtifactService reads artifact records and mints download URLs. Artifact
// status is owned by the transcode worker, so this service is read-only.
type ArtifactService struct {
	artifacts store.Artifacts
	storage   storage.Client
}

func NewArtifactService(artifacts store.Artifacts, storageClient storage.Client) *ArtifactService {
	return &ArtifactService{artifacts: artifacts, storage: storageClient}
}

func (s *ArtifactService) GetArtifact(ctx context.Context, orgID, artifactID string) (*model.Artifact, error) {
	artifact, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	return artifact, nil
}

// DownloadURL signs a time-limited URL for the encoded object when it
// exists, falling back to the raw recording.
func (s *ArtifactService) DownloadURL(ctx context.Context, orgID, artifactID string) (*model.ArtifactDownloadResponse, error) {
	artifact, err := s.GetArtifact(ctx, orgID, artifactID)
	if err != nil {
		return nil, err
	}

	key := artifact.StorageKey
	if artifact.Status == model.ArtifactStatusEncoded && artifact.EncodedKey != "" {
		key = artifact.EncodedKey
	}

	url, err := s.storage.GetSignedURL(ctx, key, downloadURLTTL)
	if err != nil {
		return nil, err
	}
	return &model.ArtifactDownloadResponse{
		ArtifactID: artifact.ID,
		URL:        url,
		ExpiresAt:  time.Now().Add(downloadURLTTL),
	}, nil
}
