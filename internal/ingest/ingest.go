// Package ingest records finished full-mode executions: the submission row,
// problem counters, and per-user solve stats move in one transaction.
package ingest

import (
	"context"
	"encoding/json"

	"codearena/internal/common/db"
	"codearena/internal/problem/model"
	"codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// OriginJobExecution tags rows written by the execution worker.
const OriginJobExecution = "job_execution"

// Submission is one finished execution to persist.
type Submission struct {
	JobID     string
	UserID    int64
	ProblemID int64
	Code      string // decoded source as submitted
	Result    json.RawMessage
	Success   bool
	Runtime   string
	Origin    string
}

// Service persists submissions atomically.
type Service struct {
	database db.Database
}

func NewService(database db.Database) *Service {
	return &Service{database: database}
}

// Ingest writes the submission and updates counters in a single transaction.
// Replays of an already ingested job id are no-ops: the insert is keyed on
// job_id, and the counter updates only run when the insert lands.
func (s *Service) Ingest(ctx context.Context, sub Submission) error {
	if sub.JobID == "" {
		return errors.ValidationError("job_id", "required")
	}
	if sub.ProblemID <= 0 {
		return errors.ValidationError("problem_id", "required")
	}
	if sub.Origin == "" {
		sub.Origin = OriginJobExecution
	}

	err := s.database.Transaction(ctx, func(tx db.Transaction) error {
		res, err := tx.Exec(ctx, `
			INSERT INTO submissions (job_id, user_id, problem_id, code_submitted, output_info, status, runtime, origin, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (job_id) DO NOTHING`,
			sub.JobID, sub.UserID, sub.ProblemID, sub.Code, []byte(sub.Result), sub.Success, sub.Runtime, sub.Origin,
		)
		if err != nil {
			return errors.Wrapf(err, errors.IngestionFailed, "insert submission")
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return errors.Wrapf(err, errors.IngestionFailed, "insert submission")
		}
		if inserted == 0 {
			logger.Info(ctx, "submission already ingested", zap.String("job_id", sub.JobID))
			return nil
		}

		accepted := 0
		if sub.Success {
			accepted = 1
		}
		if _, err := tx.Exec(ctx, `
			UPDATE problems
			SET submission_count = submission_count + 1,
			    accepted_count = accepted_count + $1,
			    updated_at = NOW()
			WHERE id = $2 AND deleted_at IS NULL`,
			accepted, sub.ProblemID,
		); err != nil {
			return errors.Wrapf(err, errors.IngestionFailed, "update problem counters")
		}

		var difficulty model.Difficulty
		row := tx.QueryRow(ctx, `SELECT difficulty FROM problems WHERE id = $1 AND deleted_at IS NULL`, sub.ProblemID)
		if err := row.Scan(&difficulty); err != nil {
			if db.IsNoRows(err) {
				return errors.Newf(errors.ProblemNotFound, "problem %d not found for stats update", sub.ProblemID)
			}
			return errors.Wrapf(err, errors.IngestionFailed, "read problem difficulty")
		}

		easy, medium, hard := bucket(difficulty)
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_stats (user_id, easy_solved, medium_solved, hard_solved, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				easy_solved = user_stats.easy_solved + EXCLUDED.easy_solved,
				medium_solved = user_stats.medium_solved + EXCLUDED.medium_solved,
				hard_solved = user_stats.hard_solved + EXCLUDED.hard_solved,
				updated_at = NOW()`,
			sub.UserID, easy, medium, hard,
		); err != nil {
			return errors.Wrapf(err, errors.StatsUpsertFailed, "upsert user stats")
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return err
		}
		return errors.Wrapf(err, errors.TransactionFailed, "ingest submission %s", sub.JobID)
	}
	return nil
}

// bucket maps a difficulty to the user_stats column increments.
func bucket(d model.Difficulty) (easy, medium, hard int) {
	switch d {
	case model.DifficultyEasy:
		return 1, 0, 0
	case model.DifficultyMedium:
		return 0, 1, 0
	case model.DifficultyHard:
		return 0, 0, 1
	}
	return 0, 0, 0
}
