package engine

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"conecta/internal/catalog"
)

const summaryDescriptionRunes = 200

var amountPrinter = message.NewPrinter(language.English)

// Summary renders the executive summary shown once an analysis completes.
func Summary(d Decomposition) string {
	var b strings.Builder
	b.WriteString("📋 **Resumen del Proyecto: " + d.Title + "**\n\n")
	b.WriteString("📝 **Descripción:**\n")
	desc := []rune(d.Description)
	if len(desc) > summaryDescriptionRunes {
		desc = desc[:summaryDescriptionRunes]
	}
	b.WriteString(string(desc) + "...\n\n")
	amountPrinter.Fprintf(&b, "💰 **Presupuesto Estimado:** $%.2f\n", d.Budget)
	amountPrinter.Fprintf(&b, "⏱️ **Tiempo Estimado:** %d días\n\n", d.EstimatedDays)
	amountPrinter.Fprintf(&b, "🎯 **Sub-tareas (%d):**\n", len(d.Subtasks))

	groups := map[string][]string{}
	for _, st := range d.Subtasks {
		groups[st.Specialty] = append(groups[st.Specialty], st.Title)
	}
	for _, code := range d.Specialties() {
		b.WriteString("\n**" + catalog.DisplayName(code) + ":**\n")
		for _, title := range groups[code] {
			b.WriteString("  • " + title + "\n")
		}
	}
	return b.String()
}
