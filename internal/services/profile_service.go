package services

import (
	"context"
	"strings"
	"time"

	"euphony/internal/apperr"
	"euphony/internal/events"
	"euphony/internal/logging"
	"euphony/internal/models"
	"euphony/internal/repositories"

	"github.com/sirupsen/logrus"
)

// ProfileRequest carries the profile fields to change. Blank fields are
// left as they are.
type ProfileRequest struct {
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Country   string `json:"country" validate:"max=100"`
	ImageURL  string `json:"image_url" validate:"max=255"`
	Phone     string `json:"phone" validate:"max=20"`
	City      string `json:"city" validate:"max=100"`
}

// ProfileService handles business logic for user profiles.
type ProfileService struct {
	profiles repositories.ProfileRepository
	bus      *events.Bus
	logger   *logrus.Entry
	now      func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profiles repositories.ProfileRepository, bus *events.Bus, logger *logrus.Entry) *ProfileService {
	if logger == nil {
		logger = logging.Component(logging.Discard(), "profiles")
	}
	return &ProfileService{
		profiles: profiles,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// List retrieves all profiles.
func (s *ProfileService) List(ctx context.Context) ([]models.Profile, error) {
	return s.profiles.GetAll(ctx)
}

// GetByUserID retrieves the profile of a user.
func (s *ProfileService) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

// Update applies the non-blank fields of req to the user's profile.
func (s *ProfileService) Update(ctx context.Context, userID string, req ProfileRequest) (*models.Profile, error) {
	const op = "profiles.update"
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.BirthDate) != "" {
		birth, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return nil, apperr.Validation(op, map[string]string{"birth_date": "birth_date must be formatted as YYYY-MM-DD"})
		}
		profile.BirthDate = &birth
	}
	applyNonBlank(&profile.Country, req.Country)
	applyNonBlank(&profile.ImageURL, req.ImageURL)
	applyNonBlank(&profile.Phone, req.Phone)
	applyNonBlank(&profile.City, req.City)

	if err := s.profiles.Update(ctx, profile); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindUpdate, op, "failed to update the profile", err)
	}

	s.logger.WithField("user_id", userID).Info("profile updated")
	return profile, nil
}

// Delete removes the user's profile and announces it. Subscribers remove
// the matching identity; their outcome is not reported here.
func (s *ProfileService) Delete(ctx context.Context, userID string) error {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.profiles.Delete(ctx, profile.ID); err != nil {
		return err
	}

	s.logger.WithField("user_id", userID).Info("profile deleted")
	if s.bus != nil {
		s.bus.Publish(ctx, events.ProfileDeleted{
			UserID:     profile.UserID,
			ProfileID:  profile.ID,
			OccurredAt: s.now(),
		})
	}
	return nil
}
