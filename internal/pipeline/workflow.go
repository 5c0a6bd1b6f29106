package pipeline

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/lectoria/storyforge-backend/internal/story"
)

// Step policy defaults. Generation and synthesis calls are slow and
// occasionally flaky rather than fast-failing, so timeouts are generous and
// retries few.
const (
	defaultStepTimeout   = 5 * time.Minute
	synthesisStepTimeout = 10 * time.Minute
	cleanupStepTimeout   = time.Minute
)

func stepOptions(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				ErrTypeValidation,
				ErrTypeUniquenessConflict,
			},
		},
	}
}

func stepFailure(stage string, err error) error {
	return fmt.Errorf("stage %s: %w", stage, err)
}

// GenerationWorkflow is the durable backbone of a run: every side-effecting
// stage is an activity checkpointed in workflow history, so a worker crash
// resumes at the last incomplete stage instead of regenerating from scratch.
// Pure, deterministic work (validation gate, slug derivation) runs inline.
func GenerationWorkflow(ctx workflow.Context, in GenerationInput) (GenerationResult, error) {
	var result GenerationResult
	logger := workflow.GetLogger(ctx)

	req := story.GenerationRequest{Level: in.Level, Kind: in.Kind}
	if err := req.Validate(); err != nil {
		return result, stepFailure(StageValidation, err)
	}
	band := in.Band
	if band.MinWords <= 0 || band.MaxWords <= 0 {
		band = story.BandFor(nil, in.Level)
	}

	ctx = workflow.WithActivityOptions(ctx, stepOptions(defaultStepTimeout))
	var a *Activities

	var avoidTitles []string
	if err := workflow.ExecuteActivity(ctx, a.ListRecentTitles, in.Kind).Get(ctx, &avoidTitles); err != nil {
		// The hint is soft; a dead cache must not fail the run.
		logger.Warn("Recent titles unavailable, continuing without exclusions",
			"stage", StageRecentTitles, "error", err)
		avoidTitles = nil
	}

	var localCtx story.LocalContext
	if err := workflow.ExecuteActivity(ctx, a.GenerateLocalContext, GenerateContextInput{
		Level: in.Level,
		Theme: in.Theme,
	}).Get(ctx, &localCtx); err != nil {
		return result, stepFailure(StageContext, err)
	}

	if in.Kind != story.KindStory {
		return questionSetRun(ctx, in, localCtx, avoidTitles)
	}

	var content story.GeneratedContent
	if err := workflow.ExecuteActivity(ctx, a.GenerateStoryContent, GenerateStoryContentInput{
		Level:       in.Level,
		Band:        band,
		Context:     localCtx,
		AvoidTitles: avoidTitles,
	}).Get(ctx, &content); err != nil {
		return result, stepFailure(StageContent, err)
	}

	// Gate: invalid content fails the run before any synthesis or image
	// spend. Regenerating here would reproduce the same defect at cost.
	if v := story.ValidateContent(content, band); !v.Valid {
		return result, stepFailure(StageValidation, temporal.NewNonRetryableApplicationError(
			strings.Join(v.Errors, "; "), ErrTypeValidation, nil))
	}

	slug := story.Slugify(content.Title)
	if slug == "" {
		return result, stepFailure(StageValidation, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("title %q produces an empty slug", content.Title), ErrTypeValidation, nil))
	}

	var workspace string
	if err := workflow.ExecuteActivity(ctx, a.CreateWorkspace).Get(ctx, &workspace); err != nil {
		return result, stepFailure(StageWorkspace, err)
	}
	defer func() {
		// Cleanup must run on failure paths too, so it gets a context that
		// survives workflow cancellation.
		dctx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		dctx = workflow.WithActivityOptions(dctx, stepOptions(cleanupStepTimeout))
		if err := workflow.ExecuteActivity(dctx, a.CleanupWorkspace, workspace).Get(dctx, nil); err != nil {
			logger.Warn("Workspace cleanup failed", "workspace", workspace, "error", err)
		}
	}()

	var enhanced string
	if err := workflow.ExecuteActivity(ctx, a.EnhanceText, content.Text).Get(ctx, &enhanced); err != nil {
		return result, stepFailure(StageEnhance, err)
	}

	synthCtx := workflow.WithActivityOptions(ctx, stepOptions(synthesisStepTimeout))
	var chunks []AudioChunk
	if err := workflow.ExecuteActivity(synthCtx, a.SynthesizeAudio, SynthesizeAudioInput{
		EnhancedText: enhanced,
		Workspace:    workspace,
	}).Get(synthCtx, &chunks); err != nil {
		return result, stepFailure(StageSynthesize, err)
	}

	var audio AudioArtifact
	if err := workflow.ExecuteActivity(ctx, a.CombineAudio, CombineAudioInput{
		Chunks:    chunks,
		Workspace: workspace,
	}).Get(ctx, &audio); err != nil {
		return result, stepFailure(StageCombine, err)
	}

	var cover ImageArtifact
	if err := workflow.ExecuteActivity(ctx, a.GenerateCoverImage, GenerateImageInput{
		Title:     content.Title,
		Text:      content.Text,
		Workspace: workspace,
	}).Get(ctx, &cover); err != nil {
		return result, stepFailure(StageImage, err)
	}

	// The two uploads write to disjoint keys and only depend on the slug, so
	// they run concurrently; both must land before persistence.
	audioFut := workflow.ExecuteActivity(ctx, a.UploadAudio, UploadInput{LocalPath: audio.LocalPath, Slug: slug})
	imageFut := workflow.ExecuteActivity(ctx, a.UploadImage, UploadInput{LocalPath: cover.LocalPath, Slug: slug})

	var audioURL, imageURL string
	if err := audioFut.Get(ctx, &audioURL); err != nil {
		return result, stepFailure(StageUploadAudio, err)
	}
	if err := imageFut.Get(ctx, &imageURL); err != nil {
		return result, stepFailure(StageUploadImage, err)
	}

	var saved SaveOutput
	if err := workflow.ExecuteActivity(ctx, a.SaveStory, SaveStoryInput{
		Slug:                    slug,
		Level:                   in.Level,
		Content:                 content,
		EnhancedText:            enhanced,
		AudioURL:                audioURL,
		ImageURL:                imageURL,
		NormalizedAlignmentPath: audio.NormalizedAlignmentPath,
	}).Get(ctx, &saved); err != nil {
		// No compensation: the uploaded blobs stay behind. Log their keys so
		// an operator can sweep them offline.
		logger.Warn("Persistence failed after upload; blobs orphaned",
			"audio_url", audioURL, "image_url", imageURL, "slug", slug)
		return result, stepFailure(StagePersist, err)
	}

	result = GenerationResult{
		RecordID: saved.RecordID,
		Slug:     slug,
		Title:    content.Title,
		AudioURL: audioURL,
		ImageURL: imageURL,
	}
	logger.Info("Story published", "slug", slug, "record_id", saved.RecordID)
	return result, nil
}

// questionSetRun is the short branch for vocabulary and grammar kinds: no
// workspace, no media stages.
func questionSetRun(ctx workflow.Context, in GenerationInput, localCtx story.LocalContext, avoidTitles []string) (GenerationResult, error) {
	var result GenerationResult
	var a *Activities

	var content story.QuestionSetContent
	if err := workflow.ExecuteActivity(ctx, a.GenerateQuestionSet, GenerateQuestionSetInput{
		Level:       in.Level,
		Kind:        in.Kind,
		Context:     localCtx,
		AvoidTitles: avoidTitles,
	}).Get(ctx, &content); err != nil {
		return result, stepFailure(StageContent, err)
	}

	if v := story.ValidateQuestionSet(content); !v.Valid {
		return result, stepFailure(StageValidation, temporal.NewNonRetryableApplicationError(
			strings.Join(v.Errors, "; "), ErrTypeValidation, nil))
	}

	slug := story.Slugify(content.Title)
	if slug == "" {
		return result, stepFailure(StageValidation, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("title %q produces an empty slug", content.Title), ErrTypeValidation, nil))
	}

	var saved SaveOutput
	if err := workflow.ExecuteActivity(ctx, a.SaveQuestionSet, SaveQuestionSetInput{
		Slug:    slug,
		Level:   in.Level,
		Kind:    in.Kind,
		Content: content,
	}).Get(ctx, &saved); err != nil {
		return result, stepFailure(StagePersist, err)
	}

	result = GenerationResult{
		RecordID: saved.RecordID,
		Slug:     slug,
		Title:    content.Title,
	}
	workflow.GetLogger(ctx).Info("Question set published", "slug", slug, "record_id", saved.RecordID)
	return result, nil
}
