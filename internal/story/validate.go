package story

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	wordRE        = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)?`)
	readingTimeRE = regexp.MustCompile(`^\d+ min$`)
)

func WordCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(wordRE.FindAllString(s, -1))
}

// ValidationResult reports the structural checks a piece of generated content
// failed. Valid content has an empty Errors slice.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateContent is the gate between text generation and the paid synthesis
// stages. It is pure: no I/O, no clock, no randomness.
func ValidateContent(content GeneratedContent, band WordBand) ValidationResult {
	var errs []string

	if strings.TrimSpace(content.Title) == "" {
		errs = append(errs, "title is empty")
	}
	if strings.TrimSpace(content.Text) == "" {
		errs = append(errs, "text is empty")
	}
	if rt := strings.TrimSpace(content.ReadingTime); !readingTimeRE.MatchString(rt) {
		errs = append(errs, fmt.Sprintf("reading_time %q does not match \"<int> min\"", rt))
	}

	if words := WordCount(content.Text); words > 0 || strings.TrimSpace(content.Text) != "" {
		if words < band.MinWords {
			errs = append(errs, fmt.Sprintf("text has %d words, below the %d-%d band", words, band.MinWords, band.MaxWords))
		} else if words > band.MaxWords {
			errs = append(errs, fmt.Sprintf("text has %d words, above the %d-%d band", words, band.MinWords, band.MaxWords))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

const minQuestions = 5

// ValidateQuestionSet gates question-set runs the same way ValidateContent
// gates story runs.
func ValidateQuestionSet(content QuestionSetContent) ValidationResult {
	var errs []string

	if strings.TrimSpace(content.Title) == "" {
		errs = append(errs, "title is empty")
	}
	if len(content.Questions) < minQuestions {
		errs = append(errs, fmt.Sprintf("question set has %d questions, minimum is %d", len(content.Questions), minQuestions))
	}
	for i, q := range content.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			errs = append(errs, fmt.Sprintf("question %d: prompt is empty", i))
		}
		if len(q.Options) != 4 {
			errs = append(errs, fmt.Sprintf("question %d: expected 4 options, got %d", i, len(q.Options)))
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
			errs = append(errs, fmt.Sprintf("question %d: answer_index %d out of range", i, q.AnswerIndex))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
