package analysis

import (
	"fmt"
	"strings"

	"github.com/poiesic/stdgap/core"
)

const (
	// MaxResearchChars bounds the research text included in a gap prompt.
	MaxResearchChars = 3000

	// MaxContextChars bounds the retrieved standards text included in a gap prompt.
	MaxContextChars = 2000
)

const systemPrompt = "You are a safety standards expert. Respond with a single JSON object and nothing else."

const gapPromptTemplate = `You are an expert in safety standards analysis. Identify potential gaps in
safety standards coverage for emerging technologies based on research papers and incident reports.

TECHNOLOGY DOMAIN: %s

RESEARCH TEXT:
%s

EXISTING RELATED STANDARDS:
%s

Identify 3-5 potential gaps in safety standards coverage based on the research text and the
existing standards. Respond with a JSON object of this shape:

{
  "gaps": [
    {
      "title": "short title",
      "description": "detailed description",
      "risk_level": "High" | "Medium" | "Low",
      "related_standards": ["standards that partially address the gap"],
      "evidence": "evidence from the research text"
    }
  ]
}`

const recommendationPromptTemplate = `You are an expert in safety standards development. Generate specific
recommendations to address the following gap in safety standards.

GAP TITLE: %s

GAP DESCRIPTION: %s

TECHNOLOGY DOMAIN: %s

RISK LEVEL: %s

RELATED STANDARDS: %s

EVIDENCE: %s

Provide 2-3 specific recommendations. Respond with a JSON object of this shape:

{
  "recommendations": [
    {
      "title": "concise title",
      "description": "detailed description",
      "proposed_text": "proposed text for a new standard or standard update",
      "rationale": "why this addresses the gap",
      "references": ["relevant research or industry practice"],
      "implementation_difficulty": "Easy" | "Moderate" | "Difficult"
    }
  ]
}`

const noStandardsFound = "No directly related standards found."

// ContextQuery is the retrieval query used to find standards for a domain.
func ContextQuery(domain string) string {
	return "safety standards for " + domain
}

// buildGapPrompt renders the gap-analysis prompt.
func buildGapPrompt(domain, research string, context []*core.SearchResult) string {
	var standards strings.Builder
	for _, r := range context {
		fmt.Fprintf(&standards, "\n\nStandard: %s - %s\nContent: %s", r.Filename, r.Section.DisplayLabel(), r.Section.Text)
	}
	contextText := truncate(standards.String(), MaxContextChars)
	if strings.TrimSpace(contextText) == "" {
		contextText = noStandardsFound
	}
	return fmt.Sprintf(gapPromptTemplate, domain, truncate(research, MaxResearchChars), contextText)
}

// buildRecommendationPrompt renders the recommendation prompt for gap.
func buildRecommendationPrompt(gap *core.Gap) string {
	related := "None identified"
	if len(gap.RelatedStandards) > 0 {
		related = strings.Join(gap.RelatedStandards, ", ")
	}
	evidence := gap.Evidence
	if evidence == "" {
		evidence = "None provided"
	}
	return fmt.Sprintf(recommendationPromptTemplate,
		gap.Title, gap.Description, gap.Domain, gap.RiskLevel, related, evidence)
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
