package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"biascope/domain/bias"
)

// RenderMarkdown produces a human-readable summary of a BiasReport. The
// visual-analytics front end consumes the JSON report; this rendering
// serves review and sharing outside it.
func RenderMarkdown(r *bias.BiasReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Selection Bias Report %s\n\n", r.ID)
	fmt.Fprintf(&b, "Cohort `%s` vs reference population, generated %s.\n\n",
		r.CohortID, r.GeneratedAt.Time().Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Composite scores\n\n")
	b.WriteString("| Method | Value | Note |\n|---|---|---|\n")
	for _, comp := range r.Composites {
		value := "n/a"
		note := string(comp.Reason)
		if comp.Value != nil {
			value = fmt.Sprintf("%.4f", *comp.Value)
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", comp.Method, value, note)
	}

	b.WriteString("\n## Per-variable metrics\n\n")
	b.WriteString("| Variable | Metric | Value | Status |\n|---|---|---|---|\n")
	for _, res := range r.Results {
		status := "ok"
		value := "-"
		if res.Valid {
			value = fmt.Sprintf("%.4f", res.Value)
			if res.Reason != bias.ReasonNone {
				status = string(res.Reason)
			}
		} else {
			status = string(res.Reason)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", res.Variable, res.Metric, value, status)
	}

	fmt.Fprintf(&b, "\nFingerprint: `%s`\n", r.Fingerprint)
	return b.String()
}

// RenderHTML converts the markdown summary to an HTML fragment.
func RenderHTML(r *bias.BiasReport) []byte {
	md := RenderMarkdown(r)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}
