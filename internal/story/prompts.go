package story

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ---------- schemas ----------

func stringListSchema(maxItems int) map[string]any {
	return map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string"},
		"minItems": 1,
		"maxItems": maxItems,
	}
}

// LocalContextSchema bounds every category so one context call cannot balloon
// the downstream prompt.
func LocalContextSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"landmarks":        stringListSchema(3),
			"traditions":       stringListSchema(3),
			"events":           stringListSchema(3),
			"neighborhoods":    stringListSchema(3),
			"cultural_details": stringListSchema(3),
		},
		"required":             []string{"landmarks", "traditions", "events", "neighborhoods", "cultural_details"},
		"additionalProperties": false,
	}
}

func GeneratedContentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":        map[string]any{"type": "string"},
			"reading_time": map[string]any{"type": "string"},
			"text":         map[string]any{"type": "string"},
		},
		"required":             []string{"title", "reading_time", "text"},
		"additionalProperties": false,
	}
}

func QuestionSetSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"prompt": map[string]any{"type": "string"},
						"options": map[string]any{
							"type":     "array",
							"items":    map[string]any{"type": "string"},
							"minItems": 4,
							"maxItems": 4,
						},
						"answer_index": map[string]any{"type": "integer"},
						"explanation":  map[string]any{"type": "string"},
					},
					"required":             []string{"prompt", "options", "answer_index", "explanation"},
					"additionalProperties": false,
				},
				"minItems": 5,
			},
		},
		"required":             []string{"title", "questions"},
		"additionalProperties": false,
	}
}

// ---------- prompts ----------

const contextSystemPrompt = `Eres un experto en cultura hispanohablante. Produce detalles locales
concretos y verosímiles (lugares, tradiciones, eventos, barrios) de una ciudad
del mundo hispanohablante, elegida libremente. Responde solo con JSON.`

func ContextUserPrompt(level Level, theme string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nivel del estudiante: %s.\n", strings.ToUpper(string(level)))
	if strings.TrimSpace(theme) != "" {
		fmt.Fprintf(&b, "Tema sugerido: %s.\n", strings.TrimSpace(theme))
	}
	b.WriteString("Da entre 1 y 3 elementos por categoría, nombres propios reales cuando sea posible.")
	return b.String()
}

func ContextSystemPrompt() string { return contextSystemPrompt }

const storySystemPrompt = `Eres un escritor de cuentos cortos para estudiantes de español.
Escribe en español natural, adaptado al nivel indicado. El campo reading_time
debe tener la forma "<número> min". Responde solo con JSON.`

func StorySystemPrompt() string { return storySystemPrompt }

func StoryUserPrompt(level Level, band WordBand, localCtx LocalContext, avoidTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nivel: %s. Longitud: entre %d y %d palabras.\n",
		strings.ToUpper(string(level)), band.MinWords, band.MaxWords)

	writeList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(items, "; "))
	}
	writeList("Lugares", localCtx.Landmarks)
	writeList("Tradiciones", localCtx.Traditions)
	writeList("Eventos", localCtx.Events)
	writeList("Barrios", localCtx.Neighborhoods)
	writeList("Detalles culturales", localCtx.CulturalDetails)

	if len(avoidTitles) > 0 {
		fmt.Fprintf(&b, "Evita títulos parecidos a estos: %s\n", strings.Join(avoidTitles, "; "))
	}
	b.WriteString("Ambienta el cuento usando varios de los detalles de arriba.")
	return b.String()
}

const enhanceSystemPrompt = `Prepara un texto en español para síntesis de voz. Inserta pausas con
"..." donde un narrador respiraría y marca énfasis poniendo la palabra entre
asteriscos. No cambies, agregues ni elimines palabras del texto; devuelve solo
el texto preparado.`

func EnhanceSystemPrompt() string { return enhanceSystemPrompt }

func QuestionSystemPrompt(kind Kind) string {
	topic := "vocabulario"
	if kind == KindGrammar {
		topic = "gramática"
	}
	return fmt.Sprintf(`Eres un autor de ejercicios de %s para estudiantes de español.
Cada pregunta tiene exactamente 4 opciones y una sola respuesta correcta
(answer_index, basado en cero). Responde solo con JSON.`, topic)
}

func QuestionUserPrompt(level Level, localCtx LocalContext, avoidTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nivel: %s. Escribe al menos 5 preguntas.\n", strings.ToUpper(string(level)))
	if len(localCtx.CulturalDetails) > 0 {
		fmt.Fprintf(&b, "Puedes ambientar las frases con: %s\n", strings.Join(localCtx.CulturalDetails, "; "))
	}
	if len(avoidTitles) > 0 {
		fmt.Fprintf(&b, "Evita títulos parecidos a estos: %s\n", strings.Join(avoidTitles, "; "))
	}
	return b.String()
}

// ---------- decoding ----------

// decodeStrict round-trips a structured-output payload into a typed value.
// The provider already enforced the schema; this only bridges map[string]any.
func decodeStrict(payload map[string]any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func DecodeLocalContext(payload map[string]any) (LocalContext, error) {
	var out LocalContext
	if err := decodeStrict(payload, &out); err != nil {
		return LocalContext{}, fmt.Errorf("decode local context: %w", err)
	}
	return out, nil
}

func DecodeGeneratedContent(payload map[string]any) (GeneratedContent, error) {
	var out GeneratedContent
	if err := decodeStrict(payload, &out); err != nil {
		return GeneratedContent{}, fmt.Errorf("decode generated content: %w", err)
	}
	return out, nil
}

func DecodeQuestionSet(payload map[string]any) (QuestionSetContent, error) {
	var out QuestionSetContent
	if err := decodeStrict(payload, &out); err != nil {
		return QuestionSetContent{}, fmt.Errorf("decode question set: %w", err)
	}
	return out, nil
}
