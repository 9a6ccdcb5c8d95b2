package services

import (
	"github.com/google/uuid"

	"github.com/pixelgenesis/backend/internal/models"
)

type DisclosureService struct{}

func NewDisclosureService() *DisclosureService {
	return &DisclosureService{}
}

// CreateRequest строит SDR. Запрос не сохраняется; id - UUIDv7.
func (s *DisclosureService) CreateRequest(requested []string) (*models.DisclosureRequest, error) {
	if requested == nil {
		return nil, InvalidInput("Field 'requested' must be an array")
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &models.DisclosureRequest{
		ID:        id.String(),
		Requested: requested,
	}, nil
}
