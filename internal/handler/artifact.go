package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/meetscribe/api/internal/middleware"
	"github.com/meetscribe/api/internal/service"
	"github.com/meetscribe/api/internal/store"
	"github.com/meetscribe/api/pkg/response"
)

type ArtifactHandler struct {
	service *service.ArtifactService
}

func NewArtifactHandler(svc *service.ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{service: svc}
}

// Get handles GET /api/artifacts/:artifactId
func (h *ArtifactHandler) Get(c *fiber.Ctx) error {
	artifactID := c.Params("artifactId")
	if artifactID == "" {
		return response.ValidationError(c, "Artifact ID is required", nil)
	}

	artifact, err := h.service.GetArtifact(c.Context(), middleware.GetOrganizationID(c), artifactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Artifact not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, artifact)
}

// Download handles GET /api/artifacts/:artifactId/download
func (h *ArtifactHandler) Download(c *fiber.Ctx) error {
	artifactID := c.Params("artifactId")
	if artifactID == "" {
		return response.ValidationError(c, "Artifact ID is required", nil)
	}

	result, err := h.service.DownloadURL(c.Context(), middleware.GetOrganizationID(c), artifactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Artifact not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
