package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/problem/model"
	"codearena/pkg/errors"

	"github.com/lib/pq"
)

// ProblemRepository persists problems, language parameters, and boilerplate
// snippets. All write methods accept an optional transaction so problem
// creation can fan out atomically.
type ProblemRepository struct {
	database db.Database
}

func NewProblemRepository(database db.Database) *ProblemRepository {
	return &ProblemRepository{database: database}
}

const problemColumns = `id, title, slug, description, difficulty, function_name,
	parameters_number, parameters, return_type, topics, constraints,
	public_test_cases, private_test_cases, submission_count, accepted_count,
	created_at, updated_at, deleted_at`

// CreateProblem inserts a problem and fills in its generated id.
func (r *ProblemRepository) CreateProblem(ctx context.Context, tx db.Transaction, p *model.Problem) error {
	paramsJSON, err := json.Marshal(p.Parameters)
	if err != nil {
		return errors.Wrap(err, errors.InternalServerError)
	}

	query := `
		INSERT INTO problems (
			title, slug, description, difficulty, function_name,
			parameters_number, parameters, return_type, topics, constraints,
			public_test_cases, private_test_cases
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	q := db.GetQuerier(r.database, tx)
	err = q.QueryRow(ctx, query,
		p.Title, p.Slug, p.Description, string(p.Difficulty), p.FunctionName,
		p.ParametersNumber, paramsJSON, p.ReturnType,
		pq.Array(p.Topics), pq.Array(p.Constraints),
		p.PublicTestCasesURL, p.PrivateTestCasesURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok && strings.Contains(constraint, "slug") {
			return errors.Newf(errors.SlugAlreadyExists, "problem slug %q already exists", p.Slug)
		}
		return errors.Wrap(err, errors.DatabaseError)
	}
	return nil
}

// GetProblem returns a problem by id, excluding soft-deleted rows.
func (r *ProblemRepository) GetProblem(ctx context.Context, id int64) (*model.Problem, error) {
	query := fmt.Sprintf(`SELECT %s FROM problems WHERE id = $1 AND deleted_at IS NULL`, problemColumns)
	return r.scanProblem(db.GetQuerier(r.database, nil).QueryRow(ctx, query, id))
}

// GetProblemBySlug returns a problem by slug, excluding soft-deleted rows.
func (r *ProblemRepository) GetProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := fmt.Sprintf(`SELECT %s FROM problems WHERE slug = $1 AND deleted_at IS NULL`, problemColumns)
	return r.scanProblem(db.GetQuerier(r.database, nil).QueryRow(ctx, query, slug))
}

// ListProblems returns a page of problems ordered by id.
func (r *ProblemRepository) ListProblems(ctx context.Context, limit, offset int) ([]*model.Problem, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM problems WHERE deleted_at IS NULL ORDER BY id LIMIT $1 OFFSET $2`, problemColumns)
	rows, err := db.GetQuerier(r.database, nil).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	defer rows.Close()

	var problems []*model.Problem
	for rows.Next() {
		p, err := r.scanProblemRow(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return problems, nil
}

// UpdateProblem applies a partial patch to a problem.
func (r *ProblemRepository) UpdateProblem(ctx context.Context, id int64, req *model.UpdateProblemRequest) (*model.Problem, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	idx := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if req.Title != nil {
		add("title", *req.Title)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Difficulty != nil {
		add("difficulty", string(*req.Difficulty))
	}
	if req.FunctionName != nil {
		add("function_name", *req.FunctionName)
	}
	if req.Parameters != nil {
		paramsJSON, err := json.Marshal(req.Parameters)
		if err != nil {
			return nil, errors.Wrap(err, errors.InternalServerError)
		}
		add("parameters", paramsJSON)
		add("parameters_number", len(req.Parameters))
	}
	if req.Topics != nil {
		add("topics", pq.Array(req.Topics))
	}
	if req.Constraints != nil {
		add("constraints", pq.Array(req.Constraints))
	}

	query := fmt.Sprintf(`UPDATE problems SET %s WHERE id = $%d AND deleted_at IS NULL RETURNING %s`,
		strings.Join(sets, ", "), idx, problemColumns)
	args = append(args, id)

	return r.scanProblem(db.GetQuerier(r.database, nil).QueryRow(ctx, query, args...))
}

// SoftDeleteProblem marks a problem deleted without removing the row.
func (r *ProblemRepository) SoftDeleteProblem(ctx context.Context, id int64) error {
	query := `UPDATE problems SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := db.GetQuerier(r.database, nil).Exec(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.DatabaseError)
	}
	if affected == 0 {
		return errors.Newf(errors.ProblemNotFound, "problem %d not found", id)
	}
	return nil
}

// InsertLanguageParameters stores the per-language signature projections.
func (r *ProblemRepository) InsertLanguageParameters(ctx context.Context, tx db.Transaction, params []model.LanguageParameter) error {
	q := db.GetQuerier(r.database, tx)
	query := `
		INSERT INTO language_parameters (problem_id, language, parameters, return_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	for i := range params {
		paramsJSON, err := json.Marshal(params[i].Parameters)
		if err != nil {
			return errors.Wrap(err, errors.InternalServerError)
		}
		err = q.QueryRow(ctx, query,
			params[i].ProblemID, params[i].Language, paramsJSON, params[i].ReturnType,
		).Scan(&params[i].ID)
		if err != nil {
			return errors.Wrap(err, errors.DatabaseError)
		}
	}
	return nil
}

// GetLanguageParameter returns the signature projection for one language.
// Absence is a hard not-found, never an empty default.
func (r *ProblemRepository) GetLanguageParameter(ctx context.Context, problemID int64, language string) (*model.LanguageParameter, error) {
	query := `
		SELECT id, problem_id, language, parameters, return_type
		FROM language_parameters
		WHERE problem_id = $1 AND language = $2`

	var lp model.LanguageParameter
	var paramsJSON []byte
	err := db.GetQuerier(r.database, nil).QueryRow(ctx, query, problemID, language).
		Scan(&lp.ID, &lp.ProblemID, &lp.Language, &paramsJSON, &lp.ReturnType)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errors.Newf(errors.LanguageParameterMissing,
				"no language parameters for problem %d language %s", problemID, language)
		}
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	if err := json.Unmarshal(paramsJSON, &lp.Parameters); err != nil {
		return nil, errors.Wrap(err, errors.InternalServerError)
	}
	return &lp, nil
}

// InsertBoilerplates stores generated starter code for every language.
func (r *ProblemRepository) InsertBoilerplates(ctx context.Context, tx db.Transaction, snippets []model.BoilerplateSnippet) error {
	q := db.GetQuerier(r.database, tx)
	query := `
		INSERT INTO boilerplate_snippets (problem_id, language, code, extension)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	for i := range snippets {
		err := q.QueryRow(ctx, query,
			snippets[i].ProblemID, snippets[i].Language, snippets[i].Code, snippets[i].Extension,
		).Scan(&snippets[i].ID)
		if err != nil {
			return errors.Wrap(err, errors.DatabaseError)
		}
	}
	return nil
}

// GetBoilerplate returns the starter code for one language.
func (r *ProblemRepository) GetBoilerplate(ctx context.Context, problemID int64, language string) (*model.BoilerplateSnippet, error) {
	query := `
		SELECT id, problem_id, language, code, extension
		FROM boilerplate_snippets
		WHERE problem_id = $1 AND language = $2`

	var s model.BoilerplateSnippet
	err := db.GetQuerier(r.database, nil).QueryRow(ctx, query, problemID, language).
		Scan(&s.ID, &s.ProblemID, &s.Language, &s.Code, &s.Extension)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errors.Newf(errors.NotFound,
				"no boilerplate for problem %d language %s", problemID, language)
		}
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return &s, nil
}

func (r *ProblemRepository) scanProblem(row db.Row) (*model.Problem, error) {
	return scanProblemFrom(row.Scan)
}

func (r *ProblemRepository) scanProblemRow(rows db.Rows) (*model.Problem, error) {
	return scanProblemFrom(rows.Scan)
}

func scanProblemFrom(scan func(dest ...interface{}) error) (*model.Problem, error) {
	var p model.Problem
	var difficulty string
	var paramsJSON []byte
	var topics, constraints pq.StringArray
	var deletedAt *time.Time

	err := scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &difficulty, &p.FunctionName,
		&p.ParametersNumber, &paramsJSON, &p.ReturnType, &topics, &constraints,
		&p.PublicTestCasesURL, &p.PrivateTestCasesURL,
		&p.SubmissionCount, &p.AcceptedCount,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errors.New(errors.ProblemNotFound)
		}
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	p.Difficulty = model.Difficulty(difficulty)
	p.Topics = topics
	p.Constraints = constraints
	p.DeletedAt = deletedAt
	if err := json.Unmarshal(paramsJSON, &p.Parameters); err != nil {
		return nil, errors.Wrap(err, errors.InternalServerError)
	}
	return &p, nil
}
