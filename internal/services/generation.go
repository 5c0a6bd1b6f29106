package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/lectoria/storyforge-backend/internal/pipeline"
	"github.com/lectoria/storyforge-backend/internal/platform/logger"
	"github.com/lectoria/storyforge-backend/internal/story"
	"github.com/lectoria/storyforge-backend/internal/temporalx"
)

// GenerationService starts pipeline runs and reports on them. It is the
// programmatic entry point the admin API (or any internal caller) uses.
type GenerationService interface {
	Start(ctx context.Context, req story.GenerationRequest, theme string) (RunHandle, error)
	Status(ctx context.Context, workflowID string) (RunStatus, error)
}

type RunHandle struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

type RunStatus struct {
	WorkflowID string                     `json:"workflow_id"`
	RunID      string                     `json:"run_id"`
	Status     string                     `json:"status"`
	Result     *pipeline.GenerationResult `json:"result,omitempty"`
}

type generationService struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewGenerationService(log *logger.Logger, tc temporalsdkclient.Client) (GenerationService, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client required")
	}
	cfg := temporalx.LoadConfig()
	return &generationService{
		log:       log.With("service", "GenerationService"),
		tc:        tc,
		taskQueue: cfg.TaskQueue,
	}, nil
}

func (s *generationService) Start(ctx context.Context, req story.GenerationRequest, theme string) (RunHandle, error) {
	var handle RunHandle
	if err := req.Validate(); err != nil {
		return handle, err
	}

	bands, err := story.Bands()
	if err != nil {
		return handle, err
	}

	workflowID := fmt.Sprintf("gen-%s-%s", req.Kind, uuid.NewString())
	run, err := s.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: s.taskQueue,
	}, pipeline.WorkflowName, pipeline.GenerationInput{
		Level: req.Level,
		Kind:  req.Kind,
		Theme: strings.TrimSpace(theme),
		Band:  story.BandFor(bands, req.Level),
	})
	if err != nil {
		return handle, fmt.Errorf("start generation workflow: %w", err)
	}

	s.log.Info("Generation run started", "workflow_id", workflowID, "level", req.Level, "kind", req.Kind)
	handle.WorkflowID = run.GetID()
	handle.RunID = run.GetRunID()
	return handle, nil
}

func (s *generationService) Status(ctx context.Context, workflowID string) (RunStatus, error) {
	var status RunStatus
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return status, fmt.Errorf("workflow id required")
	}

	desc, err := s.tc.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return status, fmt.Errorf("describe workflow: %w", err)
	}
	info := desc.GetWorkflowExecutionInfo()
	status.WorkflowID = workflowID
	status.RunID = info.GetExecution().GetRunId()
	status.Status = strings.ToLower(info.GetStatus().String())

	if info.GetStatus().String() == "Completed" {
		var result pipeline.GenerationResult
		if err := s.tc.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err == nil {
			status.Result = &result
		}
	}
	return status, nil
}
