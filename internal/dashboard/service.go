// Package dashboard serves read-only progress views over the rows the
// ingestion pipeline writes.
package dashboard

import (
	"context"

	"codearena/internal/common/db"
	"codearena/pkg/errors"
)

// UserStats is a user's per-difficulty solve totals.
type UserStats struct {
	UserID       int64 `json:"user_id"`
	EasySolved   int   `json:"easy_solved"`
	MediumSolved int   `json:"medium_solved"`
	HardSolved   int   `json:"hard_solved"`
}

// Service reads aggregated user progress.
type Service struct {
	database db.Database
}

func NewService(database db.Database) *Service {
	return &Service{database: database}
}

// GetUserStats returns a user's solve buckets. A user with no submissions
// yet gets zeroed buckets, not an error.
func (s *Service) GetUserStats(ctx context.Context, userID int64) (*UserStats, error) {
	if userID <= 0 {
		return nil, errors.ValidationError("user_id", "must be positive")
	}

	stats := &UserStats{UserID: userID}
	row := s.database.QueryRow(ctx, `
		SELECT easy_solved, medium_solved, hard_solved
		FROM user_stats
		WHERE user_id = $1`, userID)
	if err := row.Scan(&stats.EasySolved, &stats.MediumSolved, &stats.HardSolved); err != nil {
		if db.IsNoRows(err) {
			return stats, nil
		}
		return nil, errors.Wrapf(err, errors.DatabaseError, "read user stats for user %d", userID)
	}
	return stats, nil
}
