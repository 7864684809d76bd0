package app

import (
	"strings"

	"docrag/internal/model"
)

// Persona describes the institution the assistant speaks for.
type Persona struct {
	Institution  string
	Campuses     string
	Mascot       string
	ContactEmail string
	ContactPhone string
	Areas        []string
}

// BuildSystemPrompt renders the house persona and, when chunks is not
// empty, a context block the model is told to prefer.
func BuildSystemPrompt(p Persona, chunks []model.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("You are the virtual assistant of " + p.Institution + ".\n\n")

	b.WriteString("RESPONSE RULES:\n")
	b.WriteString("- Be DIRECT and BRIEF. Answer in 2-3 sentences when possible.\n")
	b.WriteString("- Use markdown only when it adds value (lists for options, bold for key data).\n")
	b.WriteString("- Do NOT use decorative asterisks or excessive formatting.\n")
	b.WriteString("- Avoid filler openers such as \"Sure!\", \"Of course!\" or \"Happy to help\".\n\n")

	b.WriteString("KEY INFORMATION:\n")
	if p.Campuses != "" {
		b.WriteString("- Campuses: " + p.Campuses + "\n")
	}
	if p.Mascot != "" {
		b.WriteString("- Mascot: " + p.Mascot + "\n")
	}
	if p.ContactEmail != "" {
		b.WriteString("- General contact: " + p.ContactEmail + "\n")
	}
	if p.ContactPhone != "" {
		b.WriteString("- Phone: " + p.ContactPhone + "\n")
	}

	if len(p.Areas) > 0 {
		b.WriteString("\nAREAS YOU KNOW:\n")
		for _, area := range p.Areas {
			b.WriteString("- " + area + "\n")
		}
	}

	if len(chunks) > 0 {
		b.WriteString("\nIMPORTANT DOCUMENT CONTEXT (use this information as the PRIMARY source):\n\n")
		for i, c := range chunks {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString("- " + c.Content)
		}
		b.WriteString("\n\nRAG INSTRUCTIONS:\n")
		b.WriteString("- Answer based PRIMARILY on the context provided above.\n")
		b.WriteString("- If the context contains the answer, use it directly.\n")
		b.WriteString("- If the context is not relevant to the question, use your general knowledge.\n")
	}

	b.WriteString("\nIf you do not have specific information, point the user to the relevant department or contact email.")
	return b.String()
}
