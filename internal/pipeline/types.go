package pipeline

import "github.com/lectoria/storyforge-backend/internal/story"

// WorkflowName is the registered name of the generation workflow.
const WorkflowName = "generation"

// Stage names, surfaced in failures so a caller knows where a run died.
const (
	StageRecentTitles = "recent_titles"
	StageContext      = "context"
	StageContent      = "content"
	StageValidation   = "validation"
	StageEnhance      = "enhance"
	StageSynthesize   = "synthesize"
	StageCombine      = "combine"
	StageImage        = "image"
	StageWorkspace    = "workspace"
	StageUploadAudio  = "upload_audio"
	StageUploadImage  = "upload_image"
	StagePersist      = "persist"
)

// Application error types the retry policy refuses to retry.
const (
	ErrTypeValidation         = "ValidationError"
	ErrTypeUniquenessConflict = "UniquenessConflictError"
)

// GenerationInput starts one run. Band is resolved by the caller (it may come
// from a yaml override on disk) so the workflow itself stays deterministic; a
// zero Band falls back to the compiled-in defaults.
type GenerationInput struct {
	Level story.Level    `json:"level"`
	Kind  story.Kind     `json:"kind"`
	Theme string         `json:"theme,omitempty"`
	Band  story.WordBand `json:"band,omitempty"`
}

// GenerationResult identifies the published record of a successful run.
type GenerationResult struct {
	RecordID string `json:"record_id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	AudioURL string `json:"audio_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// AudioChunk is one synthesized chunk staged in the workspace.
type AudioChunk struct {
	Index                   int    `json:"index"`
	AudioPath               string `json:"audio_path"`
	AlignmentPath           string `json:"alignment_path"`
	NormalizedAlignmentPath string `json:"normalized_alignment_path"`
}

// AudioArtifact is the combined narration ready for upload.
type AudioArtifact struct {
	LocalPath               string `json:"local_path"`
	AlignmentPath           string `json:"alignment_path"`
	NormalizedAlignmentPath string `json:"normalized_alignment_path"`
}

// ImageArtifact is the cover image staged in the workspace.
type ImageArtifact struct {
	LocalPath string `json:"local_path"`
}

type GenerateContextInput struct {
	Level story.Level `json:"level"`
	Theme string      `json:"theme,omitempty"`
}

type GenerateStoryContentInput struct {
	Level       story.Level        `json:"level"`
	Band        story.WordBand     `json:"band"`
	Context     story.LocalContext `json:"context"`
	AvoidTitles []string           `json:"avoid_titles,omitempty"`
}

type GenerateQuestionSetInput struct {
	Level       story.Level        `json:"level"`
	Kind        story.Kind         `json:"kind"`
	Context     story.LocalContext `json:"context"`
	AvoidTitles []string           `json:"avoid_titles,omitempty"`
}

type SynthesizeAudioInput struct {
	EnhancedText string `json:"enhanced_text"`
	Workspace    string `json:"workspace"`
}

type CombineAudioInput struct {
	Chunks    []AudioChunk `json:"chunks"`
	Workspace string       `json:"workspace"`
}

type GenerateImageInput struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	Workspace string `json:"workspace"`
}

type UploadInput struct {
	LocalPath string `json:"local_path"`
	Slug      string `json:"slug"`
}

type SaveStoryInput struct {
	Slug                    string                 `json:"slug"`
	Level                   story.Level            `json:"level"`
	Content                 story.GeneratedContent `json:"content"`
	EnhancedText            string                 `json:"enhanced_text"`
	AudioURL                string                 `json:"audio_url"`
	ImageURL                string                 `json:"image_url"`
	NormalizedAlignmentPath string                 `json:"normalized_alignment_path"`
}

type SaveQuestionSetInput struct {
	Slug    string                   `json:"slug"`
	Level   story.Level              `json:"level"`
	Kind    story.Kind               `json:"kind"`
	Content story.QuestionSetContent `json:"content"`
}

type SaveOutput struct {
	RecordID string `json:"record_id"`
}
