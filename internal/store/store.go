package store

import (
	"context"

	"github.com/samber/lo"

	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
	util "github.com/anuragn091/memory-game-cautio/internal/util"
)

// Store is the persistence contract over the durable key-value substrate.
// It holds at most one profile at a time: SaveProfile overwrites the slot
// wholesale, and switching user replaces the prior profile permanently.
// Absent records are reported as (nil, nil); errors are substrate failures
// only.
//
// Implementations may be backed by memory (tests) or SQLite (production).
type Store interface {
	SaveProfile(ctx context.Context, user *models.UserData) error
	GetProfile(ctx context.Context) (*models.UserData, error)

	// GetProfileByEmail returns the stored profile only when its email is an
	// exact, case-sensitive match.
	GetProfileByEmail(ctx context.Context, email string) (*models.UserData, error)

	// NextGameNumber is 1 for an unknown email, else session count + 1.
	NextGameNumber(ctx context.Context, email string) (int, error)

	SetCurrentSession(ctx context.Context, session *models.GameSession) error
	GetCurrentSession(ctx context.Context) (*models.GameSession, error)
	ClearCurrentSession(ctx context.Context) error

	Close() error
}

// profileByEmail filters GetProfile by exact email match. Only one profile
// can exist, so this either returns it or nothing.
func profileByEmail(ctx context.Context, s Store, email string) (*models.UserData, error) {
	user, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	if user != nil && user.Email == email {
		return user, nil
	}
	return nil, nil
}

func nextGameNumber(ctx context.Context, s Store, email string) (int, error) {
	user, err := profileByEmail(ctx, s, email)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 1, nil
	}
	return len(user.Sessions) + 1, nil
}

// CompleteSession finishes the in-flight session: it merges the end fields
// onto the stored current session, upserts the result into the profile's
// session list keyed by game number, persists the profile, and clears the
// current-session slot. Silently a no-op when either the current session or
// the profile is absent.
//
// The upsert keeps game numbers unique per user even if a completion fires
// twice; the second call's data wins.
func CompleteSession(ctx context.Context, s Store, endTime string, duration int, status string) error {
	current, err := s.GetCurrentSession(ctx)
	if err != nil {
		return err
	}
	user, err := s.GetProfile(ctx)
	if err != nil {
		return err
	}
	if current == nil || user == nil {
		util.LogWarn("CompleteSession called with no current session or no profile, skipping")
		return nil
	}

	completed := *current
	completed.EndTime = endTime
	completed.Duration = duration
	completed.Status = status

	updated := false
	for i := range user.Sessions {
		if user.Sessions[i].GameNumber == completed.GameNumber {
			user.Sessions[i] = completed
			updated = true
			break
		}
	}
	if !updated {
		user.Sessions = append(user.Sessions, completed)
	}

	if err := s.SaveProfile(ctx, user); err != nil {
		return err
	}
	if err := s.ClearCurrentSession(ctx); err != nil {
		return err
	}
	util.LogInfo("Recorded session #%d as %s (%ds) for %s", completed.GameNumber, status, duration, user.Email)
	return nil
}

// ComputeStats derives the dashboard aggregates from a session list.
func ComputeStats(sessions []models.GameSession) models.SessionStats {
	return models.SessionStats{
		TotalGames: len(sessions),
		Completed: lo.CountBy(sessions, func(s models.GameSession) bool {
			return s.Status == constants.StatusCompleted
		}),
		Lost: lo.CountBy(sessions, func(s models.GameSession) bool {
			return s.Status == constants.StatusLost
		}),
	}
}
