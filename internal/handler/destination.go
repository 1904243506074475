package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/meetscribe/api/internal/middleware"
	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/service"
	"github.com/meetscribe/api/internal/store"
	"github.com/meetscribe/api/pkg/response"
)

type DestinationHandler struct {
	service   *service.DestinationService
	validator *validator.Validate
}

func NewDestinationHandler(svc *service.DestinationService, v *validator.Validate) *DestinationHandler {
	return &DestinationHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/destinations
func (h *DestinationHandler) Create(c *fiber.Ctx) error {
	var req model.CreateDestinationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	dest, err := h.service.CreateDestination(c.Context(), middleware.GetOrganizationID(c), &req)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.Created(c, dest)
}

// List handles GET /api/destinations
func (h *DestinationHandler) List(c *fiber.Ctx) error {
	destinations, err := h.service.ListDestinations(c.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, destinations)
}

// Get handles GET /api/destinations/:destinationId
func (h *DestinationHandler) Get(c *fiber.Ctx) error {
	destID := c.Params("destinationId")
	if destID == "" {
		return response.ValidationError(c, "Destination ID is required", nil)
	}

	dest, err := h.service.GetDestination(c.Context(), middleware.GetOrganizationID(c), destID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Destination not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, dest)
}

// Update handles PATCH /api/destinations/:destinationId
func (h *DestinationHandler) Update(c *fiber.Ctx) error {
	destID := c.Params("destinationId")
	if destID == "" {
		return response.ValidationError(c, "Destination ID is required", nil)
	}

	var req model.UpdateDestinationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	dest, err := h.service.UpdateDestination(c.Context(), middleware.GetOrganizationID(c), destID, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Destination not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, dest)
}

// Delete handles DELETE /api/destinations/:destinationId
func (h *DestinationHandler) Delete(c *fiber.Ctx) error {
	destID := c.Params("destinationId")
	if destID == "" {
		return response.ValidationError(c, "Destination ID is required", nil)
	}

	if err := h.service.DeleteDestination(c.Context(), middleware.GetOrganizationID(c), destID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Destination not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// Deliveries handles GET /api/destinations/:destinationId/deliveries
func (h *DestinationHandler) Deliveries(c *fiber.Ctx) error {
	destID := c.Params("destinationId")
	if destID == "" {
		return response.ValidationError(c, "Destination ID is required", nil)
	}

	attempts, err := h.service.ListDeliveries(c.Context(), middleware.GetOrganizationID(c), destID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Destination not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, attempts)
}
