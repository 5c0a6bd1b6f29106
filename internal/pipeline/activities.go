package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	redisclient "github.com/lectoria/storyforge-backend/internal/clients/redis"
	"github.com/lectoria/storyforge-backend/internal/platform/elevenlabs"
	"github.com/lectoria/storyforge-backend/internal/platform/gcp"
	"github.com/lectoria/storyforge-backend/internal/platform/localmedia"
	"github.com/lectoria/storyforge-backend/internal/platform/logger"
	"github.com/lectoria/storyforge-backend/internal/platform/openai"
	"github.com/lectoria/storyforge-backend/internal/repos"
	"github.com/lectoria/storyforge-backend/internal/story"
	"github.com/lectoria/storyforge-backend/internal/types"
)

// Activities holds every side-effecting dependency of the pipeline. The
// workflow itself never touches the network or the filesystem; it only
// sequences these.
type Activities struct {
	Log          *logger.Logger
	DB           *gorm.DB
	Stories      repos.StoryRepo
	QuestionSets repos.QuestionSetRepo
	Titles       redisclient.TitleCache
	AI           openai.Client
	TTS          elevenlabs.Client
	Media        localmedia.Tools
	Bucket       gcp.BucketService
}

const synthesisConcurrency = 3

// -------------------- workspace --------------------

// CreateWorkspace stages a run-exclusive scratch directory. The path is
// derived from the workflow execution, so a retried create lands on the same
// directory instead of leaking a second one.
func (a *Activities) CreateWorkspace(ctx context.Context) (string, error) {
	info := activity.GetInfo(ctx)
	name := fmt.Sprintf("%s-%s", info.WorkflowExecution.ID, info.WorkflowExecution.RunID)
	dir := filepath.Join(os.TempDir(), "storyforge", sanitizePathComponent(name))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	a.Log.Debug("Workspace created", "path", dir)
	return dir, nil
}

func (a *Activities) CleanupWorkspace(ctx context.Context, workspace string) error {
	if strings.TrimSpace(workspace) == "" {
		return nil
	}
	if err := os.RemoveAll(workspace); err != nil {
		return fmt.Errorf("cleanup workspace: %w", err)
	}
	a.Log.Debug("Workspace removed", "path", workspace)
	return nil
}

func sanitizePathComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}

// -------------------- generation --------------------

// ListRecentTitles serves the avoid-titles hint from the redis window, with
// the datastore as fallback when the cache is cold or down.
func (a *Activities) ListRecentTitles(ctx context.Context, kind story.Kind) ([]string, error) {
	const limit = 20
	if a.Titles != nil {
		titles, err := a.Titles.RecentTitles(ctx, string(kind), limit)
		if err == nil && len(titles) > 0 {
			return titles, nil
		}
		if err != nil {
			a.Log.Warn("Title cache unavailable, falling back to datastore", "error", err)
		}
	}
	if kind == story.KindStory {
		return a.Stories.ListRecentTitles(ctx, nil, limit)
	}
	return a.QuestionSets.ListRecentTitles(ctx, nil, string(kind), limit)
}

func (a *Activities) GenerateLocalContext(ctx context.Context, in GenerateContextInput) (story.LocalContext, error) {
	payload, err := a.AI.GenerateJSON(ctx,
		story.ContextSystemPrompt(),
		story.ContextUserPrompt(in.Level, in.Theme),
		"local_context",
		story.LocalContextSchema(),
	)
	if err != nil {
		return story.LocalContext{}, err
	}
	return story.DecodeLocalContext(payload)
}

func (a *Activities) GenerateStoryContent(ctx context.Context, in GenerateStoryContentInput) (story.GeneratedContent, error) {
	payload, err := a.AI.GenerateJSON(ctx,
		story.StorySystemPrompt(),
		story.StoryUserPrompt(in.Level, in.Band, in.Context, in.AvoidTitles),
		"story_content",
		story.GeneratedContentSchema(),
	)
	if err != nil {
		return story.GeneratedContent{}, err
	}
	return story.DecodeGeneratedContent(payload)
}

func (a *Activities) GenerateQuestionSet(ctx context.Context, in GenerateQuestionSetInput) (story.QuestionSetContent, error) {
	payload, err := a.AI.GenerateJSON(ctx,
		story.QuestionSystemPrompt(in.Kind),
		story.QuestionUserPrompt(in.Level, in.Context, in.AvoidTitles),
		"question_set",
		story.QuestionSetSchema(),
	)
	if err != nil {
		return story.QuestionSetContent{}, err
	}
	return story.DecodeQuestionSet(payload)
}

func (a *Activities) EnhanceText(ctx context.Context, text string) (string, error) {
	enhanced, err := a.AI.GenerateText(ctx, story.EnhanceSystemPrompt(), text)
	if err != nil {
		return "", err
	}
	return enhanced, nil
}

// -------------------- audio --------------------

// SynthesizeAudio chunks the enhanced text, synthesizes the chunks in
// parallel and stages audio plus alignment files in the workspace. Returned
// chunks are in original text order regardless of completion order.
func (a *Activities) SynthesizeAudio(ctx context.Context, in SynthesizeAudioInput) ([]AudioChunk, error) {
	texts := story.SplitForSynthesis(in.EnhancedText, story.SynthesisChunkLimit)
	if len(texts) == 0 {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	chunks := make([]AudioChunk, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(synthesisConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			res, err := a.TTS.Synthesize(gctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			chunk, err := a.writeChunk(in.Workspace, i, res)
			if err != nil {
				return err
			}
			chunks[i] = chunk
			activity.RecordHeartbeat(ctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (a *Activities) writeChunk(workspace string, index int, res elevenlabs.SynthesisResult) (AudioChunk, error) {
	chunk := AudioChunk{
		Index:                   index,
		AudioPath:               filepath.Join(workspace, fmt.Sprintf("chunk-%03d.mp3", index)),
		AlignmentPath:           filepath.Join(workspace, fmt.Sprintf("chunk-%03d.alignment.json", index)),
		NormalizedAlignmentPath: filepath.Join(workspace, fmt.Sprintf("chunk-%03d.alignment.normalized.json", index)),
	}
	if err := os.WriteFile(chunk.AudioPath, res.Audio, 0o600); err != nil {
		return chunk, fmt.Errorf("write chunk %d audio: %w", index, err)
	}
	if err := writeJSONFile(chunk.AlignmentPath, res.Alignment); err != nil {
		return chunk, fmt.Errorf("write chunk %d alignment: %w", index, err)
	}
	if err := writeJSONFile(chunk.NormalizedAlignmentPath, res.NormalizedAlignment); err != nil {
		return chunk, fmt.Errorf("write chunk %d normalized alignment: %w", index, err)
	}
	return chunk, nil
}

// CombineAudio concatenates chunk audio in index order and merges the chunk
// alignments into one stream with monotonic timestamps.
func (a *Activities) CombineAudio(ctx context.Context, in CombineAudioInput) (AudioArtifact, error) {
	var artifact AudioArtifact
	if len(in.Chunks) == 0 {
		return artifact, fmt.Errorf("no chunks to combine")
	}

	audioPaths := make([]string, len(in.Chunks))
	alignments := make([]story.Alignment, len(in.Chunks))
	normalized := make([]story.Alignment, len(in.Chunks))
	for i, c := range in.Chunks {
		if c.Index != i {
			return artifact, fmt.Errorf("chunks out of order: position %d holds index %d", i, c.Index)
		}
		audioPaths[i] = c.AudioPath
		if err := readJSONFile(c.AlignmentPath, &alignments[i]); err != nil {
			return artifact, err
		}
		if err := readJSONFile(c.NormalizedAlignmentPath, &normalized[i]); err != nil {
			return artifact, err
		}
	}

	artifact.LocalPath = filepath.Join(in.Workspace, "narration.mp3")
	if err := a.Media.ConcatAudio(ctx, audioPaths, artifact.LocalPath); err != nil {
		return artifact, err
	}

	mergedAlignment, err := story.MergeAlignments(alignments)
	if err != nil {
		return artifact, fmt.Errorf("merge alignment: %w", err)
	}
	mergedNormalized, err := story.MergeAlignments(normalized)
	if err != nil {
		return artifact, fmt.Errorf("merge normalized alignment: %w", err)
	}

	artifact.AlignmentPath = filepath.Join(in.Workspace, "narration.alignment.json")
	artifact.NormalizedAlignmentPath = filepath.Join(in.Workspace, "narration.alignment.normalized.json")
	if err := writeJSONFile(artifact.AlignmentPath, mergedAlignment); err != nil {
		return artifact, err
	}
	if err := writeJSONFile(artifact.NormalizedAlignmentPath, mergedNormalized); err != nil {
		return artifact, err
	}
	return artifact, nil
}

// -------------------- image --------------------

func (a *Activities) GenerateCoverImage(ctx context.Context, in GenerateImageInput) (ImageArtifact, error) {
	var artifact ImageArtifact

	excerpt := in.Text
	if len(excerpt) > 600 {
		excerpt = excerpt[:600]
	}
	prompt := fmt.Sprintf(
		"Warm, softly lit illustration for a Spanish short story titled %q. Scene inspired by: %s. No text or lettering in the image.",
		in.Title, excerpt,
	)

	img, err := a.AI.GenerateImage(ctx, prompt)
	if err != nil {
		return artifact, err
	}
	artifact.LocalPath = filepath.Join(in.Workspace, "cover.png")
	if err := os.WriteFile(artifact.LocalPath, img.Bytes, 0o600); err != nil {
		return artifact, fmt.Errorf("write cover image: %w", err)
	}
	return artifact, nil
}

// -------------------- upload --------------------

func (a *Activities) UploadAudio(ctx context.Context, in UploadInput) (string, error) {
	key := fmt.Sprintf("audio/%s.mp3", in.Slug)
	return a.upload(ctx, gcp.BucketCategoryAudio, key, in.LocalPath, "audio/mpeg")
}

func (a *Activities) UploadImage(ctx context.Context, in UploadInput) (string, error) {
	key := fmt.Sprintf("images/%s.png", in.Slug)
	return a.upload(ctx, gcp.BucketCategoryImage, key, in.LocalPath, "image/png")
}

func (a *Activities) upload(ctx context.Context, category gcp.BucketCategory, key, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	if err := a.Bucket.UploadFile(ctx, category, key, f, contentType); err != nil {
		return "", err
	}
	return a.Bucket.GetPublicURL(category, key), nil
}

// -------------------- persistence --------------------

// SaveStory writes the published record. The slug's unique constraint is the
// run's idempotency boundary: a collision surfaces as a non-retryable
// UniquenessConflictError rather than an overwrite.
func (a *Activities) SaveStory(ctx context.Context, in SaveStoryInput) (SaveOutput, error) {
	var out SaveOutput

	var alignment story.Alignment
	if err := readJSONFile(in.NormalizedAlignmentPath, &alignment); err != nil {
		return out, err
	}
	alignmentRaw, err := json.Marshal(alignment)
	if err != nil {
		return out, fmt.Errorf("marshal alignment: %w", err)
	}

	record := &types.Story{
		Slug:          in.Slug,
		Title:         in.Content.Title,
		Text:          in.Content.Text,
		EnhancedText:  in.EnhancedText,
		Level:         string(in.Level),
		ReadingTime:   in.Content.ReadingTime,
		AudioURL:      in.AudioURL,
		ImageURL:      in.ImageURL,
		AlignmentData: datatypes.JSON(alignmentRaw),
	}
	saved, err := a.Stories.Create(ctx, nil, record)
	if err != nil {
		if errors.Is(err, repos.ErrSlugTaken) {
			return out, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUniquenessConflict, err)
		}
		return out, err
	}

	a.pushTitle(ctx, story.KindStory, saved.Title)
	out.RecordID = saved.ID.String()
	return out, nil
}

func (a *Activities) SaveQuestionSet(ctx context.Context, in SaveQuestionSetInput) (SaveOutput, error) {
	var out SaveOutput

	questionsRaw, err := json.Marshal(in.Content.Questions)
	if err != nil {
		return out, fmt.Errorf("marshal questions: %w", err)
	}
	record := &types.QuestionSet{
		Slug:      in.Slug,
		Title:     in.Content.Title,
		Level:     string(in.Level),
		Kind:      string(in.Kind),
		Questions: datatypes.JSON(questionsRaw),
	}
	saved, err := a.QuestionSets.Create(ctx, nil, record)
	if err != nil {
		if errors.Is(err, repos.ErrSlugTaken) {
			return out, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUniquenessConflict, err)
		}
		return out, err
	}

	a.pushTitle(ctx, in.Kind, saved.Title)
	out.RecordID = saved.ID.String()
	return out, nil
}

func (a *Activities) pushTitle(ctx context.Context, kind story.Kind, title string) {
	if a.Titles == nil {
		return
	}
	if err := a.Titles.PushTitle(ctx, string(kind), title); err != nil {
		a.Log.Warn("Failed to push title to cache", "error", err)
	}
}

// -------------------- file helpers --------------------

func writeJSONFile(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
