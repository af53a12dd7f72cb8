package periods

import (
	"context"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListPostingPeriods(ctx context.Context) ([]Period, error) {
	return s.repo.ListPostingPeriods(ctx)
}

// OpenPeriodIDs returns the ids of open, non-aggregate periods in list order.
func (s *Service) OpenPeriodIDs(ctx context.Context) ([]int64, error) {
	list, err := s.repo.ListPostingPeriods(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(list))
	for _, p := range list {
		if p.Open() {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// SelectOpenPeriod returns requested when it is an open posting period and
// zero otherwise. No other period is substituted.
func (s *Service) SelectOpenPeriod(ctx context.Context, requested int64) (int64, error) {
	if requested <= 0 {
		return 0, nil
	}
	open, err := s.OpenPeriodIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range open {
		if id == requested {
			return requested, nil
		}
	}
	return 0, nil
}
