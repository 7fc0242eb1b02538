package service

import (
	"context"
	"fmt"
	"strings"

	"codearena/internal/common/db"
	"codearena/internal/common/storage"
	"codearena/internal/langmap"
	"codearena/internal/problem/model"
	"codearena/internal/problem/repository"
	"codearena/internal/template"
	"codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// ProblemService owns the problem lifecycle. Creation is a single transaction
// that fans out the per-language signature projections and boilerplate
// snippets, so a problem is never visible half-derived.
type ProblemService struct {
	repo      *repository.ProblemRepository
	database  db.Database
	objects   storage.ObjectStorage
	bucket    string
	generator *template.Generator
}

func NewProblemService(repo *repository.ProblemRepository, database db.Database, objects storage.ObjectStorage, bucket string, generator *template.Generator) *ProblemService {
	return &ProblemService{
		repo:      repo,
		database:  database,
		objects:   objects,
		bucket:    bucket,
		generator: generator,
	}
}

// CreateProblem validates, uploads the test-case artifacts, and inserts the
// problem with its derived rows atomically. The artifact columns store object
// keys; callers presign them into fetchable URLs at run time.
func (s *ProblemService) CreateProblem(ctx context.Context, req *model.CreateProblemRequest) (*model.Problem, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	p := &model.Problem{
		Title:            req.Title,
		Slug:             slug.Make(req.Title),
		Description:      req.Description,
		Difficulty:       req.Difficulty,
		FunctionName:     req.FunctionName,
		ParametersNumber: len(req.Parameters),
		Parameters:       req.Parameters,
		ReturnType:       req.ReturnType,
		Topics:           req.Topics,
		Constraints:      req.Constraints,
	}

	publicKey, err := s.uploadTestCases(ctx, p.Slug, "public", req.PublicTestCases)
	if err != nil {
		return nil, err
	}
	privateKey, err := s.uploadTestCases(ctx, p.Slug, "private", req.PrivateTestCases)
	if err != nil {
		return nil, err
	}
	p.PublicTestCasesURL = publicKey
	p.PrivateTestCasesURL = privateKey

	err = s.database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.repo.CreateProblem(ctx, tx, p); err != nil {
			return err
		}

		params, err := template.DeriveLanguageParameters(p)
		if err != nil {
			return err
		}
		if err := s.repo.InsertLanguageParameters(ctx, tx, params); err != nil {
			return err
		}

		snippets, err := s.generator.GenerateBoilerplates(p)
		if err != nil {
			return err
		}
		return s.repo.InsertBoilerplates(ctx, tx, snippets)
	})
	if err != nil {
		// The artifacts are orphaned if the transaction failed; best effort
		// cleanup so retried creations do not accumulate garbage.
		if rmErr := s.objects.RemoveObjects(ctx, s.bucket, []string{publicKey, privateKey}); rmErr != nil {
			logger.Warn(ctx, "cleanup test case artifacts failed", zap.String("slug", p.Slug), zap.Error(rmErr))
		}
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.Wrapf(err, errors.ProblemCreateFailed, "create problem %q", req.Title)
	}

	logger.Info(ctx, "problem created",
		zap.Int64("problem_id", p.ID),
		zap.String("slug", p.Slug),
		zap.String("difficulty", string(p.Difficulty)),
	)
	return p, nil
}

// GetProblem returns one problem by id.
func (s *ProblemService) GetProblem(ctx context.Context, id int64) (*model.Problem, error) {
	if id <= 0 {
		return nil, errors.New(errors.InvalidParams)
	}
	return s.repo.GetProblem(ctx, id)
}

// GetProblemBySlug returns one problem by slug.
func (s *ProblemService) GetProblemBySlug(ctx context.Context, slugStr string) (*model.Problem, error) {
	if slugStr == "" {
		return nil, errors.New(errors.InvalidParams)
	}
	return s.repo.GetProblemBySlug(ctx, slugStr)
}

// ListProblems returns a page of problems.
func (s *ProblemService) ListProblems(ctx context.Context, limit, offset int) ([]*model.Problem, error) {
	return s.repo.ListProblems(ctx, limit, offset)
}

// UpdateProblem applies a partial patch.
func (s *ProblemService) UpdateProblem(ctx context.Context, id int64, req *model.UpdateProblemRequest) (*model.Problem, error) {
	if id <= 0 {
		return nil, errors.New(errors.InvalidParams)
	}
	if req.Difficulty != nil && !req.Difficulty.Valid() {
		return nil, errors.Newf(errors.ValidationFailed, "unknown difficulty %q", *req.Difficulty)
	}
	if req.Parameters != nil {
		if err := validateParams(req.Parameters); err != nil {
			return nil, err
		}
	}
	updated, err := s.repo.UpdateProblem(ctx, id, req)
	if err != nil {
		if errors.Is(err, errors.ProblemNotFound) || errors.Is(err, errors.ValidationFailed) {
			return nil, err
		}
		return nil, errors.Wrapf(err, errors.ProblemUpdateFailed, "update problem %d", id)
	}
	return updated, nil
}

// DeleteProblem soft-deletes a problem.
func (s *ProblemService) DeleteProblem(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New(errors.InvalidParams)
	}
	return s.repo.SoftDeleteProblem(ctx, id)
}

// GetBoilerplate returns the stored starter code for one language.
func (s *ProblemService) GetBoilerplate(ctx context.Context, problemID int64, language string) (*model.BoilerplateSnippet, error) {
	if problemID <= 0 || language == "" {
		return nil, errors.New(errors.InvalidParams)
	}
	return s.repo.GetBoilerplate(ctx, problemID, language)
}

func (s *ProblemService) uploadTestCases(ctx context.Context, slugStr, visibility string, cases []model.TestCase) (string, error) {
	body, err := template.MarshalTestCases(cases)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("problems/%s/%s_test_cases.json", slugStr, visibility)
	reader := strings.NewReader(body)
	if err := s.objects.PutObject(ctx, s.bucket, key, reader, int64(len(body)), "application/json"); err != nil {
		return "", errors.Wrapf(err, errors.ObjectUploadFailed, "upload %s test cases for %s", visibility, slugStr)
	}
	return key, nil
}

func validateCreate(req *model.CreateProblemRequest) error {
	if req.Title == "" || req.Description == "" || req.FunctionName == "" {
		return errors.New(errors.RequiredFieldEmpty)
	}
	if !req.Difficulty.Valid() {
		return errors.Newf(errors.ValidationFailed, "unknown difficulty %q", req.Difficulty)
	}
	if len(req.Parameters) == 0 {
		return errors.ValidationError("parameters", "at least one parameter is required")
	}
	if err := validateParams(req.Parameters); err != nil {
		return err
	}
	if !langmap.IsCanonical(req.ReturnType) {
		return errors.Newf(errors.InvalidFormat, "unknown return type %q", req.ReturnType)
	}
	if len(req.PublicTestCases) == 0 {
		return errors.ValidationError("public_test_cases", "at least one public test case is required")
	}
	if len(req.PrivateTestCases) == 0 {
		return errors.ValidationError("private_test_cases", "at least one private test case is required")
	}
	return nil
}

func validateParams(params []model.Param) error {
	for _, p := range params {
		if p.Name == "" {
			return errors.ValidationError("parameters", "parameter name is required")
		}
		if !langmap.IsCanonical(p.Type) {
			return errors.Newf(errors.InvalidFormat, "unknown parameter type %q", p.Type)
		}
	}
	return nil
}
