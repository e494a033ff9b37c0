package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/moodmingle/internal/apperror"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/observability"
	"github.com/sakif/moodmingle/internal/repository"
)

// ActivityService manages each user's saved activities. Saving a title twice and
// removing one that is not saved both succeed without changing anything, so a client
// replaying a toggle never sees a spurious failure.
type ActivityService struct {
	repo   repository.ActivityRepository
	logger *slog.Logger
}

func NewActivityService(repo repository.ActivityRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{repo: repo, logger: logger}
}

func (s *ActivityService) List(ctx context.Context, userID string) ([]model.SavedActivity, error) {
	activities, err := s.repo.ListActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/activity: listing: %w", err)
	}
	return activities, nil
}

func (s *ActivityService) Save(ctx context.Context, userID string, a model.SavedActivity) error {
	if strings.TrimSpace(a.Title) == "" {
		return apperror.ValidationFailed("title", "activity title is required")
	}

	created, err := s.repo.SaveActivity(ctx, userID, a)
	if err != nil {
		s.logger.Error("failed to save activity",
			slog.String("userID", userID),
			slog.String("title", a.Title),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/activity: saving %q: %w", a.Title, err)
	}
	observability.RecordSavedMutation("save", created)
	s.logger.Debug("activity saved",
		slog.String("userID", userID),
		slog.String("title", a.Title),
		slog.Bool("created", created),
	)
	return nil
}

func (s *ActivityService) Remove(ctx context.Context, userID, title string) error {
	if strings.TrimSpace(title) == "" {
		return apperror.ValidationFailed("title", "activity title is required")
	}

	removed, err := s.repo.RemoveActivity(ctx, userID, title)
	if err != nil {
		return fmt.Errorf("service/activity: removing %q: %w", title, err)
	}
	observability.RecordSavedMutation("remove", removed)
	s.logger.Debug("activity removed",
		slog.String("userID", userID),
		slog.String("title", title),
		slog.Bool("removed", removed),
	)
	return nil
}
