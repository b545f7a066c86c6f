// Package catalog holds the fixed specialty table shared by vendors, sub-tasks
// and the LLM prompts, and normalizes free text into canonical codes.
package catalog

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Specialty is one catalog entry.
type Specialty struct {
	Code string `json:"codigo"`
	Name string `json:"nombre"`
}

// Fallback is used when a specialty cannot be resolved.
const Fallback = "DESARROLLO_MEDIDA"

// minContainment is the shortest folded input eligible for substring matching.
const minContainment = 3

var entries = []Specialty{
	{Code: "CONSULTORIA_DESARROLLO", Name: "Consultoría en desarrollo de sistemas"},
	{Code: "CONSULTORIA_HARDWARE", Name: "Consultoría en hardware"},
	{Code: "CONSULTORIA_SOFTWARE", Name: "Consultoría en software"},
	{Code: "DESARROLLO_MEDIDA", Name: "Desarrollo de software a medida"},
	{Code: "SOFTWARE_EMPAQUETADO", Name: "Desarrollo y producción de software empaquetado"},
	{Code: "ACTUALIZACION_SOFTWARE", Name: "Actualización y adaptación de software"},
	{Code: "HOSTING", Name: "Servicios de alojamiento de datos (hosting)"},
	{Code: "PROCESAMIENTO_DATOS", Name: "Servicios de procesamiento de datos"},
	{Code: "CLOUD_COMPUTING", Name: "Servicios en la nube (cloud computing)"},
	{Code: "RECUPERACION_DESASTRES", Name: "Servicios de recuperación ante desastres"},
	{Code: "CIBERSEGURIDAD", Name: "Servicios de ciberseguridad"},
	{Code: "CAPACITACION_TI", Name: "Capacitación en TI"},
}

type folded struct {
	code string
	name string
}

var (
	byCode = map[string]Specialty{}
	keys   []folded
)

func init() {
	for _, s := range entries {
		byCode[s.Code] = s
		keys = append(keys, folded{code: fold(s.Code), name: fold(s.Name)})
	}
}

// All returns the catalog in display order.
func All() []Specialty {
	out := make([]Specialty, len(entries))
	copy(out, entries)
	return out
}

// IsCode reports whether code is a canonical catalog code.
func IsCode(code string) bool {
	_, ok := byCode[code]
	return ok
}

// Name returns the display name for a canonical code.
func Name(code string) (string, bool) {
	s, ok := byCode[code]
	return s.Name, ok
}

// Normalize resolves a code or a human-readable name to its canonical code.
// Exact matches win over substring containment; ties go to catalog order.
func Normalize(text string) (string, bool) {
	t := fold(text)
	if t == "" {
		return "", false
	}
	for i, k := range keys {
		if t == k.code || t == k.name {
			return entries[i].Code, true
		}
	}
	if utf8.RuneCountInString(t) < minContainment {
		return "", false
	}
	for i, k := range keys {
		if strings.Contains(k.name, t) || strings.Contains(t, k.name) ||
			strings.Contains(k.code, t) || strings.Contains(t, k.code) {
			return entries[i].Code, true
		}
	}
	return "", false
}

// NormalizeOr is Normalize with a fallback code.
func NormalizeOr(text, fallback string) string {
	if code, ok := Normalize(text); ok {
		return code
	}
	return fallback
}

// DisplayName renders any stored specialty value for humans. Unknown values
// are returned unchanged.
func DisplayName(value string) string {
	if code, ok := Normalize(value); ok {
		return byCode[code].Name
	}
	return value
}

// ParseVendorSpecialties reads the stored vendor specialty text, which may be
// a JSON array, a comma separated list or a single value. Unknown items are
// dropped and the result is deduplicated in input order.
func ParseVendorSpecialties(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		items = strings.Split(raw, ",")
	}
	out := []string{}
	seen := map[string]bool{}
	for _, item := range items {
		code, ok := Normalize(strings.Trim(item, "\"'[] "))
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// Contains reports whether code is in the list.
func Contains(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases, strips accents, reads underscores as spaces and collapses
// whitespace.
func fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(strings.ReplaceAll(out, "_", " "))
	return strings.Join(strings.Fields(out), " ")
}
