package story

import (
	"fmt"
	"strings"
)

// Kind selects which artifact a generation run publishes.
type Kind string

const (
	KindStory      Kind = "story"
	KindVocabulary Kind = "vocabulary"
	KindGrammar    Kind = "grammar"
)

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindStory, KindVocabulary, KindGrammar:
		return k, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

// GenerationRequest is the immutable input to one pipeline run.
type GenerationRequest struct {
	Level Level `json:"level"`
	Kind  Kind  `json:"kind"`
}

func (r GenerationRequest) Validate() error {
	if _, err := ParseLevel(string(r.Level)); err != nil {
		return err
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	return nil
}

// LocalContext grounds generation in concrete regional detail. Produced once
// per run and consumed by content generation only.
type LocalContext struct {
	Landmarks       []string `json:"landmarks"`
	Traditions      []string `json:"traditions"`
	Events          []string `json:"events"`
	Neighborhoods   []string `json:"neighborhoods"`
	CulturalDetails []string `json:"cultural_details"`
}

// GeneratedContent is the structured output of story content generation.
type GeneratedContent struct {
	Title       string `json:"title"`
	ReadingTime string `json:"reading_time"`
	Text        string `json:"text"`
}

// Question is one multiple-choice item of a vocabulary or grammar set.
type Question struct {
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation"`
}

// QuestionSetContent is the structured output of question-set generation.
type QuestionSetContent struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}
