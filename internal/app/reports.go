package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Reports keeps moderation reports in memory for the life of the process.
type Reports struct {
	mu      sync.RWMutex
	reports map[domain.ReportID]domain.Report
	now     func() time.Time
}

func NewReports() *Reports {
	return &Reports{
		reports: make(map[domain.ReportID]domain.Report),
		now:     time.Now,
	}
}

func (s *Reports) Create(reporter domain.UserID, game domain.GameID, reason, details string) (domain.Report, error) {
	r := domain.Report{
		ID:         domain.ReportID(uuid.NewString()),
		Status:     domain.ReportPending,
		ReporterID: reporter,
		GameID:     game,
		Reason:     reason,
		Details:    details,
		CreatedAt:  s.now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return domain.Report{}, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	s.mu.Lock()
	s.reports[r.ID] = r
	s.mu.Unlock()

	log.Info().Str("module", "app.reports").Str("report_id", string(r.ID)).Str("game_id", string(game)).Msg("report filed")
	return r, nil
}

// Pending lists pending reports, oldest first.
func (s *Reports) Pending() []domain.Report {
	s.mu.RLock()
	out := make([]domain.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if r.Status == domain.ReportPending {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Reports) Resolve(id domain.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return apperr.ErrNotFound
	}
	r.Status = domain.ReportResolved
	s.reports[id] = r
	return nil
}
