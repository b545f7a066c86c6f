package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"conecta/internal/catalog"
	"conecta/internal/domain"
)

// Decomposition is a validated project draft, safe to persist.
type Decomposition struct {
	Title              string         `json:"titulo"`
	UserStory          string         `json:"historia_usuario"`
	Description        string         `json:"descripcion_completa"`
	AcceptanceCriteria []string       `json:"criterios_aceptacion"`
	Budget             float64        `json:"presupuesto_estimado"`
	EstimatedDays      int            `json:"tiempo_estimado_dias"`
	Subtasks           []DraftSubtask `json:"subtareas"`
}

type DraftSubtask struct {
	Code          string   `json:"codigo"`
	Title         string   `json:"titulo"`
	Description   string   `json:"descripcion"`
	Specialty     string   `json:"especialidad"`
	Priority      string   `json:"prioridad"`
	EstimateHours int      `json:"estimacion_horas"`
	Dependencies  []string `json:"dependencias"`
}

type ValidateOptions struct {
	FallbackSpecialty    string
	DefaultEstimateHours int
}

// ValidateDecomposition coerces an untrusted "proyecto" object into a
// Decomposition. Bad fields fall back to defaults and produce warnings; only
// an empty sub-task list is an error.
func ValidateDecomposition(raw map[string]any, opts ValidateOptions) (Decomposition, []string, error) {
	if opts.FallbackSpecialty == "" || !catalog.IsCode(opts.FallbackSpecialty) {
		opts.FallbackSpecialty = catalog.Fallback
	}
	if opts.DefaultEstimateHours <= 0 {
		opts.DefaultEstimateHours = 40
	}
	var warnings []string
	d := Decomposition{
		Title:              strings.TrimSpace(asString(raw["titulo"])),
		UserStory:          strings.TrimSpace(asString(raw["historia_usuario"])),
		Description:        strings.TrimSpace(firstString(raw, "descripcion_completa", "descripcion")),
		AcceptanceCriteria: asStrings(raw["criterios_aceptacion"]),
		Budget:             math.Max(0, asFloat(raw["presupuesto_estimado"])),
		EstimatedDays:      max(0, asInt(raw["tiempo_estimado_dias"])),
	}
	items, _ := raw["subtareas"].([]any)
	seen := map[string]bool{}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("subtarea %d ignorada: no es un objeto", i+1))
			continue
		}
		n := len(d.Subtasks) + 1
		st := DraftSubtask{
			Code:         strings.TrimSpace(asString(obj["codigo"])),
			Title:        strings.TrimSpace(asString(obj["titulo"])),
			Description:  strings.TrimSpace(asString(obj["descripcion"])),
			Dependencies: asStrings(obj["dependencias"]),
		}
		if st.Code == "" || seen[st.Code] {
			orig := st.Code
			st.Code = uniqueCode(n, seen)
			if orig != "" {
				warnings = append(warnings, fmt.Sprintf("código duplicado %s reasignado a %s", orig, st.Code))
			}
		}
		seen[st.Code] = true
		if st.Title == "" {
			st.Title = fmt.Sprintf("Sub-tarea %d", n)
		}
		rawSpecialty := strings.TrimSpace(asString(obj["especialidad"]))
		if code, ok := catalog.Normalize(rawSpecialty); ok {
			st.Specialty = code
		} else {
			st.Specialty = opts.FallbackSpecialty
			warnings = append(warnings, fmt.Sprintf("especialidad desconocida %q en %s, se usa %s", rawSpecialty, st.Code, opts.FallbackSpecialty))
		}
		st.Priority = normalizePriority(asString(obj["prioridad"]))
		st.EstimateHours = asInt(obj["estimacion_horas"])
		if st.EstimateHours <= 0 {
			st.EstimateHours = opts.DefaultEstimateHours
		}
		d.Subtasks = append(d.Subtasks, st)
	}
	if len(d.Subtasks) == 0 {
		return d, warnings, ErrEmptyDecomposition
	}
	return d, warnings, nil
}

func uniqueCode(n int, seen map[string]bool) string {
	for {
		code := fmt.Sprintf("TASK-%03d", n)
		if !seen[code] {
			return code
		}
		n++
	}
}

// normalizePriority maps free-text priorities onto ALTA, MEDIA or BAJA.
func normalizePriority(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case domain.PriorityHigh, "HIGH":
		return domain.PriorityHigh
	case domain.PriorityLow, "LOW":
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}

// Dominant returns the most frequent specialty, first occurrence on ties.
func (d Decomposition) Dominant() string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, st := range d.Subtasks {
		counts[st.Specialty]++
		if counts[st.Specialty] > bestN {
			best, bestN = st.Specialty, counts[st.Specialty]
		}
	}
	if best == "" {
		return domain.SpecialtyOther
	}
	return best
}

// Specialties lists the distinct specialties in first-seen order.
func (d Decomposition) Specialties() []string {
	var out []string
	for _, st := range d.Subtasks {
		if !catalog.Contains(out, st.Specialty) {
			out = append(out, st.Specialty)
		}
	}
	return out
}

// analysisReply is what one model answer means for the conversation.
type analysisReply interface {
	isAnalysisReply()
}

// continuing keeps the dialogue open. Ready is set when the model claimed to
// be done but its payload was unusable.
type continuing struct {
	Text  string
	Ready bool
	Err   error
}

type terminal struct {
	Draft map[string]any
}

func (continuing) isAnalysisReply() {}
func (terminal) isAnalysisReply()   {}

// parseReply classifies a model answer. Anything that is not a complete
// terminal payload continues the conversation.
func parseReply(text string) analysisReply {
	body := sanitizeJSONText(text)
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return continuing{Text: strings.TrimSpace(text)}
	}
	if !asBool(obj["finalizado"]) {
		if msg := firstString(obj, "pregunta", "mensaje", "respuesta"); strings.TrimSpace(msg) != "" {
			return continuing{Text: strings.TrimSpace(msg)}
		}
		return continuing{Text: strings.TrimSpace(text)}
	}
	draft, _ := obj["proyecto"].(map[string]any)
	if draft == nil {
		return continuing{Text: readyQuestion, Ready: true, Err: MalformedPayloadError{Reason: "missing proyecto"}}
	}
	if items, _ := draft["subtareas"].([]any); len(items) == 0 {
		return continuing{Text: readyQuestion, Ready: true, Err: MalformedPayloadError{Reason: "empty subtareas"}}
	}
	if strings.TrimSpace(asString(draft["titulo"])) == "" {
		return continuing{Text: readyQuestion, Ready: true, Err: MalformedPayloadError{Reason: "missing titulo"}}
	}
	return terminal{Draft: draft}
}

// sanitizeJSONText strips a Markdown code fence around a JSON body.
func sanitizeJSONText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(obj[k]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return t
	case string:
		s := strings.NewReplacer("$", "", ",", "", "USD", "", " ", "").Replace(strings.TrimSpace(t))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return asFloat(f)
	default:
		return 0
	}
}

// asInt floors numeric values and numeric strings; anything else is 0.
func asInt(v any) int {
	f := math.Floor(asFloat(v))
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

// asStrings accepts a list of strings or a single string.
func asStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(asString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
