package quotedoc

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestHTMLConvertsMarkdownWithMeta(t *testing.T) {
	doc, err := HTML("# Indicative Legal Quote\n\n## Estimate\n\nBetween **1240 EUR** and **1860 EUR**.\n", Meta{
		Reference: "req-<1>",
		Date:      time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Badges:    []string{"Confidence: high", " ", "Urgent"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<title>Legal Quote</title>",
		"<strong>1240 EUR</strong>",
		"<strong>Reference:</strong> req-&lt;1&gt;",
		"1 March 2025 09:30 UTC",
		"<span class='doc-badge'>Confidence: high</span>",
		"<span class='doc-badge'>Urgent</span>",
		`<h2 data-highlight="true">Estimate</h2>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Count(doc, "doc-badge'>") != 2 {
		t.Error("blank badge rendered")
	}
}

func TestApplyPrintLayoutHooksAddsPageBreakBeforeCalculationDetails(t *testing.T) {
	in := "<h2>Analysis</h2><p>x</p><h2>Calculation Details</h2><ol><li>y</li></ol>"
	out := applyPrintLayoutHooks(in)
	if !strings.Contains(out, `<h2 data-page-break-before="true">Calculation Details</h2>`) {
		t.Fatalf("expected page-break hook, got: %s", out)
	}
}

func TestApplyPrintLayoutHooksNoopWhenHeadingsMissing(t *testing.T) {
	in := "<h2>Analysis</h2><p>x</p>"
	if out := applyPrintLayoutHooks(in); out != in {
		t.Fatalf("expected no change, got: %s", out)
	}
}

func TestNewChromiumPDFRendererKeepsExplicitPath(t *testing.T) {
	if got := NewChromiumPDFRenderer("/opt/chrome/chrome").ChromePath(); got != "/opt/chrome/chrome" {
		t.Fatalf("chrome path = %q", got)
	}
}

func TestChromiumPDFRendererRender(t *testing.T) {
	r := NewChromiumPDFRenderer(os.Getenv("CHROME_PATH"))
	if r.ChromePath() == "" {
		t.Skip("no chromium available")
	}
	doc, err := HTML("# Quote\n\nBody.", Meta{})
	if err != nil {
		t.Fatal(err)
	}
	pdf, err := r.Render(context.Background(), doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a pdf: %q", pdf[:min(len(pdf), 16)])
	}
}
