package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/lectoria/storyforge-backend/internal/story"
)

var testActivities *Activities

func storyInput() GenerationInput {
	return GenerationInput{
		Level: story.LevelB1,
		Kind:  story.KindStory,
		Band:  story.WordBand{MinWords: 1, MaxWords: 10000},
	}
}

func inBandContent() story.GeneratedContent {
	return story.GeneratedContent{
		Title:       "El Sueño de María",
		ReadingTime: "2 min",
		Text:        "María caminaba por el mercado. Compró manzanas y pan. Luego volvió a casa.",
	}
}

func mockGenerationUpToContent(env *testsuite.TestWorkflowEnvironment, content story.GeneratedContent) {
	a := testActivities
	env.OnActivity(a.ListRecentTitles, mock.Anything, mock.Anything).Return([]string{"Una Tarde en Sevilla"}, nil)
	env.OnActivity(a.GenerateLocalContext, mock.Anything, mock.Anything).Return(story.LocalContext{
		Landmarks: []string{"Plaza Mayor"},
	}, nil)
	env.OnActivity(a.GenerateStoryContent, mock.Anything, mock.Anything).Return(content, nil)
}

func TestGenerationWorkflow_StoryHappyPath(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	content := inBandContent()
	mockGenerationUpToContent(env, content)

	env.OnActivity(a.CreateWorkspace, mock.Anything).Return("/tmp/ws", nil)
	env.OnActivity(a.EnhanceText, mock.Anything, content.Text).Return("texto... con *pausas*", nil)
	env.OnActivity(a.SynthesizeAudio, mock.Anything, mock.Anything).Return([]AudioChunk{
		{Index: 0, AudioPath: "/tmp/ws/chunk-000.mp3"},
	}, nil)
	env.OnActivity(a.CombineAudio, mock.Anything, mock.Anything).Return(AudioArtifact{
		LocalPath:               "/tmp/ws/narration.mp3",
		NormalizedAlignmentPath: "/tmp/ws/narration.alignment.normalized.json",
	}, nil)
	env.OnActivity(a.GenerateCoverImage, mock.Anything, mock.Anything).Return(ImageArtifact{LocalPath: "/tmp/ws/cover.png"}, nil)
	env.OnActivity(a.UploadAudio, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in UploadInput) (string, error) {
			return "https://cdn.example.com/audio/" + in.Slug + ".mp3", nil
		})
	env.OnActivity(a.UploadImage, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in UploadInput) (string, error) {
			return "https://cdn.example.com/images/" + in.Slug + ".png", nil
		})

	var savedInput SaveStoryInput
	env.OnActivity(a.SaveStory, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in SaveStoryInput) (SaveOutput, error) {
			savedInput = in
			return SaveOutput{RecordID: "rec-1"}, nil
		})
	env.OnActivity(a.CleanupWorkspace, mock.Anything, "/tmp/ws").Return(nil)

	env.ExecuteWorkflow(GenerationWorkflow, storyInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result GenerationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "el-sueno-de-maria", result.Slug)
	require.Equal(t, content.Title, result.Title)
	require.Equal(t, "https://cdn.example.com/audio/el-sueno-de-maria.mp3", result.AudioURL)
	require.Equal(t, "https://cdn.example.com/images/el-sueno-de-maria.png", result.ImageURL)

	// The record keeps the reader-facing text; the prosody-annotated variant
	// is stored alongside, never in its place.
	require.Equal(t, content.Text, savedInput.Content.Text)
	require.Equal(t, "texto... con *pausas*", savedInput.EnhancedText)
	require.Equal(t, "el-sueno-de-maria", savedInput.Slug)

	env.AssertExpectations(t)
}

func TestGenerationWorkflow_ValidationFailureSkipsPaidStages(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	content := inBandContent()
	mockGenerationUpToContent(env, content)

	var enhanceCalls, synthCalls, imageCalls, uploadCalls, saveCalls int
	env.OnActivity(a.EnhanceText, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, text string) (string, error) {
			enhanceCalls++
			return text, nil
		})
	env.OnActivity(a.SynthesizeAudio, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in SynthesizeAudioInput) ([]AudioChunk, error) {
			synthCalls++
			return nil, nil
		})
	env.OnActivity(a.GenerateCoverImage, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in GenerateImageInput) (ImageArtifact, error) {
			imageCalls++
			return ImageArtifact{}, nil
		})
	env.OnActivity(a.UploadAudio, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in UploadInput) (string, error) {
			uploadCalls++
			return "", nil
		})
	env.OnActivity(a.SaveStory, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in SaveStoryInput) (SaveOutput, error) {
			saveCalls++
			return SaveOutput{}, nil
		})

	in := storyInput()
	in.Band = story.WordBand{MinWords: 500, MaxWords: 900}
	env.ExecuteWorkflow(GenerationWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, ErrTypeValidation, appErr.Type())
	require.Contains(t, err.Error(), StageValidation)

	require.Zero(t, enhanceCalls)
	require.Zero(t, synthCalls)
	require.Zero(t, imageCalls)
	require.Zero(t, uploadCalls)
	require.Zero(t, saveCalls)
}

func TestGenerationWorkflow_ValidationErrorNotRetried(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	contentCalls := 0
	env.OnActivity(a.ListRecentTitles, mock.Anything, mock.Anything).Return(nil, nil)
	env.OnActivity(a.GenerateLocalContext, mock.Anything, mock.Anything).Return(story.LocalContext{}, nil)
	env.OnActivity(a.GenerateStoryContent, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in GenerateStoryContentInput) (story.GeneratedContent, error) {
			contentCalls++
			return story.GeneratedContent{Title: "t", ReadingTime: "bad", Text: "x"}, nil
		})

	env.ExecuteWorkflow(GenerationWorkflow, storyInput())

	require.Error(t, env.GetWorkflowError())
	// The gate rejects the content inline; regenerating would reproduce the
	// same defect, so exactly one generation attempt happens.
	require.Equal(t, 1, contentCalls)
}

func TestGenerationWorkflow_SlugConflictFailsWithoutRetry(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	content := inBandContent()
	mockGenerationUpToContent(env, content)
	env.OnActivity(a.CreateWorkspace, mock.Anything).Return("/tmp/ws", nil)
	env.OnActivity(a.EnhanceText, mock.Anything, mock.Anything).Return(content.Text, nil)
	env.OnActivity(a.SynthesizeAudio, mock.Anything, mock.Anything).Return([]AudioChunk{{Index: 0}}, nil)
	env.OnActivity(a.CombineAudio, mock.Anything, mock.Anything).Return(AudioArtifact{LocalPath: "/tmp/ws/narration.mp3"}, nil)
	env.OnActivity(a.GenerateCoverImage, mock.Anything, mock.Anything).Return(ImageArtifact{LocalPath: "/tmp/ws/cover.png"}, nil)
	env.OnActivity(a.UploadAudio, mock.Anything, mock.Anything).Return("https://cdn.example.com/a.mp3", nil)
	env.OnActivity(a.UploadImage, mock.Anything, mock.Anything).Return("https://cdn.example.com/i.png", nil)
	env.OnActivity(a.CleanupWorkspace, mock.Anything, mock.Anything).Return(nil)

	saveCalls := 0
	env.OnActivity(a.SaveStory, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in SaveStoryInput) (SaveOutput, error) {
			saveCalls++
			return SaveOutput{}, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("slug %q already published", in.Slug), ErrTypeUniquenessConflict, nil)
		})

	env.ExecuteWorkflow(GenerationWorkflow, storyInput())

	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, ErrTypeUniquenessConflict, appErr.Type())
	require.Equal(t, 1, saveCalls)
	require.Contains(t, err.Error(), StagePersist)
}

func TestGenerationWorkflow_UploadsLandBeforePersist(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	content := inBandContent()
	mockGenerationUpToContent(env, content)
	env.OnActivity(a.CreateWorkspace, mock.Anything).Return("/tmp/ws", nil)
	env.OnActivity(a.EnhanceText, mock.Anything, mock.Anything).Return(content.Text, nil)
	env.OnActivity(a.SynthesizeAudio, mock.Anything, mock.Anything).Return([]AudioChunk{{Index: 0}}, nil)
	env.OnActivity(a.CombineAudio, mock.Anything, mock.Anything).Return(AudioArtifact{LocalPath: "/tmp/ws/narration.mp3"}, nil)
	env.OnActivity(a.GenerateCoverImage, mock.Anything, mock.Anything).Return(ImageArtifact{LocalPath: "/tmp/ws/cover.png"}, nil)
	env.OnActivity(a.CleanupWorkspace, mock.Anything, mock.Anything).Return(nil)

	var order []string
	env.OnActivity(a.UploadAudio, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in UploadInput) (string, error) {
			order = append(order, "upload_audio")
			return "https://cdn.example.com/a.mp3", nil
		})
	env.OnActivity(a.UploadImage, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in UploadInput) (string, error) {
			order = append(order, "upload_image")
			return "https://cdn.example.com/i.png", nil
		})
	env.OnActivity(a.SaveStory, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in SaveStoryInput) (SaveOutput, error) {
			order = append(order, "persist")
			require.NotEmpty(t, in.AudioURL)
			require.NotEmpty(t, in.ImageURL)
			return SaveOutput{RecordID: "rec-1"}, nil
		})

	env.ExecuteWorkflow(GenerationWorkflow, storyInput())
	require.NoError(t, env.GetWorkflowError())

	require.Len(t, order, 3)
	require.Equal(t, "persist", order[2])
}

func TestGenerationWorkflow_TransientFailureDoesNotRepeatEarlierSteps(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	content := inBandContent()
	var contentCalls, enhanceCalls, synthCalls, combineCalls, imageCalls, uploadAudioCalls int

	env.OnActivity(a.ListRecentTitles, mock.Anything, mock.Anything).Return(nil, nil)
	env.OnActivity(a.GenerateLocalContext, mock.Anything, mock.Anything).Return(story.LocalContext{}, nil)
	env.OnActivity(a.GenerateStoryContent, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in GenerateStoryContentInput) (story.GeneratedContent, error) {
			contentCalls++
			return content, nil
		})
	env.OnActivity(a.CreateWorkspace, mock.Anything).Return("/tmp/ws", nil)
	env.OnActivity(a.EnhanceText, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, text string) (string, error) {
			enhanceCalls++
			return text, nil
		})
	env.OnActivity(a.SynthesizeAudio, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in SynthesizeAudioInput) ([]AudioChunk, error) {
			synthCalls++
			return []AudioChunk{{Index: 0}}, nil
		})
	env.OnActivity(a.CombineAudio, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in CombineAudioInput) (AudioArtifact, error) {
			combineCalls++
			return AudioArtifact{LocalPath: "/tmp/ws/narration.mp3"}, nil
		})
	env.OnActivity(a.GenerateCoverImage, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in GenerateImageInput) (ImageArtifact, error) {
			imageCalls++
			return ImageArtifact{LocalPath: "/tmp/ws/cover.png"}, nil
		})
	env.OnActivity(a.UploadAudio, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in UploadInput) (string, error) {
			uploadAudioCalls++
			if uploadAudioCalls == 1 {
				return "", errors.New("storage unavailable")
			}
			return "https://cdn.example.com/a.mp3", nil
		})
	env.OnActivity(a.UploadImage, mock.Anything, mock.Anything).Return("https://cdn.example.com/i.png", nil)
	env.OnActivity(a.SaveStory, mock.Anything, mock.Anything).Return(SaveOutput{RecordID: "rec-1"}, nil)
	env.OnActivity(a.CleanupWorkspace, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(GenerationWorkflow, storyInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	// Only the failed step is re-attempted; everything already checkpointed in
	// history runs exactly once.
	require.Equal(t, 2, uploadAudioCalls)
	require.Equal(t, 1, contentCalls)
	require.Equal(t, 1, enhanceCalls)
	require.Equal(t, 1, synthCalls)
	require.Equal(t, 1, combineCalls)
	require.Equal(t, 1, imageCalls)
}

func TestGenerationWorkflow_RecentTitleFailureIsSoft(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	content := inBandContent()
	env.OnActivity(a.ListRecentTitles, mock.Anything, mock.Anything).Return(nil, errors.New("cache down"))
	env.OnActivity(a.GenerateLocalContext, mock.Anything, mock.Anything).Return(story.LocalContext{}, nil)
	env.OnActivity(a.GenerateStoryContent, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in GenerateStoryContentInput) (story.GeneratedContent, error) {
			require.Empty(t, in.AvoidTitles)
			return content, nil
		})
	env.OnActivity(a.CreateWorkspace, mock.Anything).Return("/tmp/ws", nil)
	env.OnActivity(a.EnhanceText, mock.Anything, mock.Anything).Return(content.Text, nil)
	env.OnActivity(a.SynthesizeAudio, mock.Anything, mock.Anything).Return([]AudioChunk{{Index: 0}}, nil)
	env.OnActivity(a.CombineAudio, mock.Anything, mock.Anything).Return(AudioArtifact{LocalPath: "/tmp/ws/narration.mp3"}, nil)
	env.OnActivity(a.GenerateCoverImage, mock.Anything, mock.Anything).Return(ImageArtifact{LocalPath: "/tmp/ws/cover.png"}, nil)
	env.OnActivity(a.UploadAudio, mock.Anything, mock.Anything).Return("https://cdn.example.com/a.mp3", nil)
	env.OnActivity(a.UploadImage, mock.Anything, mock.Anything).Return("https://cdn.example.com/i.png", nil)
	env.OnActivity(a.SaveStory, mock.Anything, mock.Anything).Return(SaveOutput{RecordID: "rec-1"}, nil)
	env.OnActivity(a.CleanupWorkspace, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(GenerationWorkflow, storyInput())
	require.NoError(t, env.GetWorkflowError())
}

func TestGenerationWorkflow_QuestionSetRunSkipsMediaStages(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := testActivities

	qs := story.QuestionSetContent{Title: "Verbos del Pasado"}
	for i := 0; i < 5; i++ {
		qs.Questions = append(qs.Questions, story.Question{
			Prompt:      "¿Cuál es el pretérito de 'ir'?",
			Options:     []string{"fui", "iba", "iré", "vaya"},
			AnswerIndex: 0,
			Explanation: "El pretérito de 'ir' es 'fui'.",
		})
	}

	env.OnActivity(a.ListRecentTitles, mock.Anything, mock.Anything).Return(nil, nil)
	env.OnActivity(a.GenerateLocalContext, mock.Anything, mock.Anything).Return(story.LocalContext{}, nil)
	env.OnActivity(a.GenerateQuestionSet, mock.Anything, mock.Anything).Return(qs, nil)
	env.OnActivity(a.SaveQuestionSet, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in SaveQuestionSetInput) (SaveOutput, error) {
			require.Equal(t, "verbos-del-pasado", in.Slug)
			require.Equal(t, story.KindGrammar, in.Kind)
			return SaveOutput{RecordID: "rec-2"}, nil
		})

	env.ExecuteWorkflow(GenerationWorkflow, GenerationInput{
		Level: story.LevelB2,
		Kind:  story.KindGrammar,
	})

	require.NoError(t, env.GetWorkflowError())
	var result GenerationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "verbos-del-pasado", result.Slug)
	require.Empty(t, result.AudioURL)
	require.Empty(t, result.ImageURL)
	env.AssertExpectations(t)
}

func TestGenerationWorkflow_RejectsBadRequestWithoutActivities(t *testing.T) {
	ts := testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	env.ExecuteWorkflow(GenerationWorkflow, GenerationInput{Level: "z9", Kind: story.KindStory})

	err := env.GetWorkflowError()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unknown level"))
}

func TestStepFailure_NamesStage(t *testing.T) {
	err := stepFailure(StageSynthesize, errors.New("boom"))
	require.Contains(t, err.Error(), "stage synthesize")
	require.Contains(t, err.Error(), "boom")
}
