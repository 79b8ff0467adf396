package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/repository"
	"github.com/noah-isme/isms-go-api/internal/workflow"
)

// WorkflowService serves workflow instance queries and routes approver
// decisions into the engine.
type WorkflowService interface {
	List(ctx context.Context, query dto.WorkflowInstanceQuery) ([]dto.WorkflowInstanceResponse, dto.PaginationMeta, error)
	Get(ctx context.Context, id uint) (dto.WorkflowInstanceResponse, error)
	PendingApprovals(ctx context.Context, userID uint) ([]dto.WorkflowInstanceResponse, error)
	Approve(ctx context.Context, instanceID, userID uint, comments string) (dto.WorkflowInstanceResponse, error)
	Reject(ctx context.Context, instanceID, userID uint, comments string) (dto.WorkflowInstanceResponse, error)
	Cancel(ctx context.Context, instanceID uint, reason string) (dto.WorkflowInstanceResponse, error)
}

type workflowService struct {
	engine    *workflow.Engine
	workflows repository.WorkflowRepository
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewWorkflowService constructs the workflow service.
func NewWorkflowService(engine *workflow.Engine, workflows repository.WorkflowRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) WorkflowService {
	return &workflowService{
		engine:    engine,
		workflows: workflows,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "workflow_service").Logger(),
		now:       time.Now,
	}
}

func (s *workflowService) List(ctx context.Context, query dto.WorkflowInstanceQuery) ([]dto.WorkflowInstanceResponse, dto.PaginationMeta, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = 50
	}

	instances, total, err := s.workflows.ListInstances(ctx, repository.WorkflowInstanceFilter{
		Page:       query.Page,
		PageSize:   query.PageSize,
		Status:     query.Status,
		EntityType: query.EntityType,
		EntityID:   query.EntityID,
	})
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	responses := dto.NewWorkflowInstanceResponseSlice(instances, s.now().UTC())
	return responses, dto.NewPaginationMeta(query.Page, query.PageSize, total), nil
}

func (s *workflowService) Get(ctx context.Context, id uint) (dto.WorkflowInstanceResponse, error) {
	instance, err := s.workflows.FindInstanceByID(ctx, id)
	if err != nil {
		return dto.WorkflowInstanceResponse{}, err
	}
	return dto.NewWorkflowInstanceResponse(*instance, s.now().UTC()), nil
}

// PendingApprovals lists the in-progress instances whose current step the
// user may decide.
func (s *workflowService) PendingApprovals(ctx context.Context, userID uint) ([]dto.WorkflowInstanceResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	instances, err := s.workflows.ListInProgress(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var pending []dto.WorkflowInstanceResponse
	for _, instance := range instances {
		if s.engine.CanAct(&instance, user) {
			pending = append(pending, dto.NewWorkflowInstanceResponse(instance, now))
		}
	}

	return pending, nil
}

func (s *workflowService) Approve(ctx context.Context, instanceID, userID uint, comments string) (dto.WorkflowInstanceResponse, error) {
	return s.decide(ctx, instanceID, workflow.StepResult{ApproverID: userID, Approved: true, Comments: comments})
}

func (s *workflowService) Reject(ctx context.Context, instanceID, userID uint, comments string) (dto.WorkflowInstanceResponse, error) {
	return s.decide(ctx, instanceID, workflow.StepResult{ApproverID: userID, Approved: false, Comments: comments})
}

func (s *workflowService) Cancel(ctx context.Context, instanceID uint, reason string) (dto.WorkflowInstanceResponse, error) {
	instance, err := s.engine.Cancel(ctx, instanceID, reason)
	if err != nil {
		return dto.WorkflowInstanceResponse{}, err
	}
	return dto.NewWorkflowInstanceResponse(*instance, s.now().UTC()), nil
}

func (s *workflowService) decide(ctx context.Context, instanceID uint, result workflow.StepResult) (dto.WorkflowInstanceResponse, error) {
	instance, err := s.engine.Advance(ctx, instanceID, result)
	if err != nil {
		return dto.WorkflowInstanceResponse{}, err
	}

	s.logger.Info().
		Uint("instance_id", instance.ID).
		Uint("approver_id", result.ApproverID).
		Bool("approved", result.Approved).
		Str("status", instance.Status).
		Msg("workflow decision applied")

	return dto.NewWorkflowInstanceResponse(*instance, s.now().UTC()), nil
}
