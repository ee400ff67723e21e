package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/shared/textgen"
)

// Generator produces text from a prompt. Failures are returned as text
// prefixed with textgen.ErrorPrefix, never as errors.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

const (
	noDescriptionText = "No description provided."
	noReportsText     = "No personnel reports available."
)

// Narrator computes report narratives. It never writes to the database.
type Narrator struct {
	gen Generator
}

// NewNarrator creates a narrator. A nil generator yields soft failures.
func NewNarrator(gen Generator) *Narrator {
	return &Narrator{gen: gen}
}

func (n *Narrator) generate(ctx context.Context, prompt string) string {
	if n == nil || n.gen == nil {
		return textgen.ErrorText(errors.New("text generation is not configured"))
	}
	return n.gen.Generate(ctx, prompt)
}

// BuildWARPrompt builds the strict single-sentence prompt for a WAR description.
func BuildWARPrompt(unitName, description string, reports []string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		description = noDescriptionText
	}

	var lines []string
	for _, r := range reports {
		if r = strings.TrimSpace(r); r != "" {
			lines = append(lines, "- "+r)
		}
	}
	reportBlock := noReportsText
	if len(lines) > 0 {
		reportBlock = strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString("You write Work Accomplishment Report (WAR) statements.\n")
	b.WriteString("STRICT OUTPUT RULES:\n")
	b.WriteString("- Output exactly ONE sentence.\n")
	b.WriteString("- No title, label, list, quotation marks or explanation.\n")
	b.WriteString("- Past tense, active voice, formal government style.\n")
	b.WriteString("- Do not mention names of people.\n\n")
	fmt.Fprintf(&b, "Unit: %s\n", unitName)
	fmt.Fprintf(&b, "Request description: %s\n", description)
	fmt.Fprintf(&b, "Personnel reports:\n%s\n", reportBlock)
	return b.String()
}

// BuildIPMTPrompt builds the summary prompt for one indicator group.
func BuildIPMTPrompt(indicatorCode string, descriptions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following work accomplishments for the success indicator '%s':\n\n", indicatorCode)
	for _, d := range descriptions {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	b.WriteString("\nWrite ONE concise sentence describing what the assigned personnel or unit did. ")
	b.WriteString("Do NOT mention requestors. Do NOT include names. ")
	b.WriteString("Use active voice and formal government style. Keep it clear, specific and professional.")
	return b.String()
}

// WARDescription returns the request description, or a generated sentence
// when the request has none.
func (n *Narrator) WARDescription(ctx context.Context, unitName, description string, reports []string) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	return n.GenerateWARSummary(ctx, unitName, description, reports)
}

// GenerateWARSummary always asks the generator for a WAR sentence.
func (n *Narrator) GenerateWARSummary(ctx context.Context, unitName, description string, reports []string) string {
	return strings.TrimSpace(n.generate(ctx, BuildWARPrompt(unitName, description, reports)))
}

// SummarizeByIndicator makes one generator call per indicator group of the
// given WARs, skipping blank descriptions. Groups with no text are omitted.
func (n *Narrator) SummarizeByIndicator(ctx context.Context, wars []entity.WorkAccomplishmentReport) map[string]string {
	groups := make(map[string][]string)
	for i := range wars {
		desc := strings.TrimSpace(wars[i].Description)
		if desc == "" {
			continue
		}
		code := wars[i].IndicatorCode()
		groups[code] = append(groups[code], desc)
	}

	out := make(map[string]string, len(groups))
	for code, descs := range groups {
		out[code] = strings.TrimSpace(n.generate(ctx, BuildIPMTPrompt(code, descs)))
	}
	return out
}

// IPMTNarrative applies the aggregation policy: no WARs gives no narrative,
// one WAR gives its description verbatim, more than one is summarized.
func (n *Narrator) IPMTNarrative(ctx context.Context, wars []entity.WorkAccomplishmentReport) string {
	switch len(wars) {
	case 0:
		return ""
	case 1:
		return wars[0].Description
	}

	summaries := n.SummarizeByIndicator(ctx, wars)
	codes := make([]string, 0, len(summaries))
	for code := range summaries {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		if s := summaries[code]; s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// DefaultRemarks returns RemarkComplied for a non-empty narrative.
func DefaultRemarks(narrative string) string {
	if strings.TrimSpace(narrative) == "" {
		return ""
	}
	return entity.RemarkComplied
}
