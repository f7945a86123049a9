package report

import (
	"strings"
	"testing"
	"time"

	"biascope/domain/bias"
	"biascope/domain/core"
)

func sampleReport() *bias.BiasReport {
	value := 0.42
	r := &bias.BiasReport{
		ID:          core.ReportID(core.NewID()),
		CohortID:    core.CohortID(core.NewID()),
		GeneratedAt: core.NewTimestamp(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)),
		Results: []bias.MetricResult{
			{Variable: "age", Metric: "smd", Value: 0.42, Valid: true},
			bias.Invalid("gender", "tvd", bias.ReasonInsufficientSample),
		},
		Composites: []bias.CompositeScore{
			{Method: bias.AggregateMean, Value: &value},
			{Method: bias.AggregateMax, Reason: bias.ReasonNoValidInputs},
		},
	}
	r.Fingerprint = r.ComputeFingerprint()
	return r
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	for _, want := range []string{
		"| age | smd | 0.4200 | ok |",
		"| gender | tvd | - | insufficient_sample |",
		"| mean | 0.4200 |",
		"| max | n/a | no_valid_inputs |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if !strings.Contains(md, "Fingerprint:") {
		t.Error("markdown missing fingerprint line")
	}
}

func TestRenderHTMLProducesTables(t *testing.T) {
	html := string(RenderHTML(sampleReport()))
	if !strings.Contains(html, "<table>") {
		t.Errorf("expected rendered tables, got:\n%s", html)
	}
	if !strings.Contains(html, "insufficient_sample") {
		t.Error("invalid-result reason lost in rendering")
	}
}
