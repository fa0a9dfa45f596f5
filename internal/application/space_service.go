package application

import (
	"context"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
)

// SpaceService はカタログ側が所有するスペース情報への読み取り専用の窓口
type SpaceService struct {
	spaceRepo space.Repository
}

func NewSpaceService(sr space.Repository) *SpaceService {
	return &SpaceService{spaceRepo: sr}
}

func (s *SpaceService) GetByID(ctx context.Context, id string) (*space.Space, error) {
	return s.spaceRepo.GetByID(ctx, id)
}

func (s *SpaceService) List(ctx context.Context, limit, offset int) ([]*space.Space, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.spaceRepo.List(ctx, limit, offset)
}
