package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/isms-go-api/internal/dto"
	"github.com/noah-isme/isms-go-api/internal/handler"
	"github.com/noah-isme/isms-go-api/internal/workflow"
)

type mockWorkflowService struct {
	lastQuery    dto.WorkflowInstanceQuery
	lastComments string
	lastUserID   uint
	response     dto.WorkflowInstanceResponse
	listResponse []dto.WorkflowInstanceResponse
	err          error
}

func (m *mockWorkflowService) List(_ context.Context, query dto.WorkflowInstanceQuery) ([]dto.WorkflowInstanceResponse, dto.PaginationMeta, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, dto.PaginationMeta{}, m.err
	}
	return m.listResponse, dto.PaginationMeta{Page: query.Page, PageSize: query.PageSize, TotalItems: int64(len(m.listResponse))}, nil
}

func (m *mockWorkflowService) Get(_ context.Context, _ uint) (dto.WorkflowInstanceResponse, error) {
	return m.response, m.err
}

func (m *mockWorkflowService) PendingApprovals(_ context.Context, userID uint) ([]dto.WorkflowInstanceResponse, error) {
	m.lastUserID = userID
	return m.listResponse, m.err
}

func (m *mockWorkflowService) Approve(_ context.Context, _ uint, userID uint, comments string) (dto.WorkflowInstanceResponse, error) {
	m.lastUserID = userID
	m.lastComments = comments
	return m.response, m.err
}

func (m *mockWorkflowService) Reject(_ context.Context, _ uint, userID uint, comments string) (dto.WorkflowInstanceResponse, error) {
	m.lastUserID = userID
	m.lastComments = comments
	return m.response, m.err
}

func (m *mockWorkflowService) Cancel(_ context.Context, _ uint, reason string) (dto.WorkflowInstanceResponse, error) {
	m.lastComments = reason
	return m.response, m.err
}

func newWorkflowApp(svc *mockWorkflowService, userID *uint) *fiber.App {
	app := fiber.New()
	if userID != nil {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", *userID)
			return c.Next()
		})
	}
	handler.NewWorkflowHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/workflows"))
	return app
}

func decodeResponse(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestWorkflowHandler_ListPassesFilters(t *testing.T) {
	svc := &mockWorkflowService{listResponse: []dto.WorkflowInstanceResponse{{ID: 1, Status: "in_progress"}}}
	app := newWorkflowApp(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/?status=in_progress&entity_type=Incident&entity_id=7", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, "in_progress", svc.lastQuery.Status)
	require.Equal(t, "Incident", svc.lastQuery.EntityType)
	require.NotNil(t, svc.lastQuery.EntityID)
	require.Equal(t, uint(7), *svc.lastQuery.EntityID)
}

func TestWorkflowHandler_ListInvalidEntityID(t *testing.T) {
	app := newWorkflowApp(&mockWorkflowService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/?entity_id=oops", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWorkflowHandler_ApproveCarriesActorAndComments(t *testing.T) {
	svc := &mockWorkflowService{response: dto.WorkflowInstanceResponse{ID: 4, Status: "approved"}}
	userID := uint(31)
	app := newWorkflowApp(svc, &userID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/4/approve", strings.NewReader(`{"comments":"verified"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, uint(31), svc.lastUserID)
	require.Equal(t, "verified", svc.lastComments)

	var body struct {
		Success bool                         `json:"success"`
		Data    dto.WorkflowInstanceResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "approved", body.Data.Status)
}

func TestWorkflowHandler_DecisionWithoutAuthIsRefused(t *testing.T) {
	app := newWorkflowApp(&mockWorkflowService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/4/approve", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWorkflowHandler_DomainErrorsMapToStatuses(t *testing.T) {
	userID := uint(8)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"terminal instance", workflow.ErrInvalidTransition, fiber.StatusConflict},
		{"wrong approver", workflow.ErrNotAuthorized, fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newWorkflowApp(&mockWorkflowService{err: tc.err}, &userID)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/4/reject", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
