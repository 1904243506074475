package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/store"
)

// DestinationService manages the receivers of events and stream data.
type DestinationService struct {
	destinations store.Destinations
	deliveries   store.Deliveries
}

func NewDestinationService(destinations store.Destinations, deliveries store.Deliveries) *DestinationService {
	return &DestinationService{destinations: destinations, deliveries: deliveries}
}

func (s *DestinationService) CreateDestination(ctx context.Context, orgID string, req *model.CreateDestinationRequest) (*model.Destination, error) {
	// Stream transports carry raw bytes and must be able to authenticate
	// the sender; callbacks without a secret are merely unsigned.
	if req.Secret == "" && (req.Transport == model.TransportStreamHTTP || req.Transport == model.TransportStreamSocket) {
		return nil, fmt.Errorf("stream destinations require a secret")
	}

	now := time.Now()
	dest := &model.Destination{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		SessionID:      req.SessionID,
		Transport:      req.Transport,
		URL:            req.URL,
		Secret:         req.Secret,
		Events:         req.Events,
		MaxRetries:     req.MaxRetries,
		TimeoutSeconds: req.TimeoutSeconds,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.destinations.Create(ctx, dest); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}
	return dest, nil
}

func (s *DestinationService) GetDestination(ctx context.Context, orgID, destID string) (*model.Destination, error) {
	dest, err := s.destinations.Get(ctx, destID)
	if err != nil {
		return nil, err
	}
	if dest.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	return dest, nil
}

func (s *DestinationService) UpdateDestination(ctx context.Context, orgID, destID string, req *model.UpdateDestinationRequest) (*model.Destination, error) {
	dest, err := s.GetDestination(ctx, orgID, destID)
	if err != nil {
		return nil, err
	}

	if req.URL != nil {
		dest.URL = *req.URL
	}
	if req.Secret != nil {
		dest.Secret = *req.Secret
	}
	if req.Events != nil {
		dest.Events = *req.Events
	}
	if req.MaxRetries != nil {
		dest.MaxRetries = *req.MaxRetries
	}
	if req.TimeoutSeconds != nil {
		dest.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.Active != nil {
		dest.Active = *req.Active
	}
	dest.UpdatedAt = time.Now()

	if err := s.destinations.Update(ctx, dest); err != nil {
		return nil, fmt.Errorf("failed to update destination: %w", err)
	}
	return dest, nil
}

func (s *DestinationService) DeleteDestination(ctx context.Context, orgID, destID string) error {
	if _, err := s.GetDestination(ctx, orgID, destID); err != nil {
		return err
	}
	return s.destinations.Delete(ctx, destID)
}

func (s *DestinationService) ListDestinations(ctx context.Context, orgID string) ([]*model.Destination, error) {
	return s.destinations.ListByOrganization(ctx, orgID)
}

// ListDeliveries returns the recorded delivery attempts for a destination,
// newest last.
func (s *DestinationService) ListDeliveries(ctx context.Context, orgID, destID string) ([]*model.DeliveryAttempt, error) {
	if _, err := s.GetDestination(ctx, orgID, destID); err != nil {
		return nil, err
	}
	return s.deliveries.List(ctx, destID)
}
