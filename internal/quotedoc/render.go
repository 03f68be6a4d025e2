package quotedoc

import (
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed style.css
var styleCSS string

const renderTimeout = 30 * time.Second

// Meta is shown in the document header, above the converted markdown.
type Meta struct {
	Title     string
	Reference string
	Date      time.Time
	Badges    []string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts a markdown quote report into a standalone, printable page.
func HTML(report string, meta Meta) (string, error) {
	var content strings.Builder
	if err := markdown.Convert([]byte(report), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	title := meta.Title
	if title == "" {
		title = "Legal Quote"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + styleCSS + "</style></head><body>" +
		"<div class='doc-wrap'><header class='doc-header'>" +
		"<div class='doc-meta'>" + buildMetaHTML(meta) + "</div>" +
		"<div class='doc-badges'>" + buildBadgeHTML(meta.Badges) + "</div>" +
		"</header><main class='doc-body'>" + applyPrintLayoutHooks(content.String()) + "</main></div>" +
		"</body></html>", nil
}

var (
	reDetailsHeading  = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Calculation Details\s*</h2>`)
	reEstimateHeading = regexp.MustCompile(`(?i)<h2([^>]*)>\s*(Estimate|Recommended Alternative)\s*</h2>`)
)

func applyPrintLayoutHooks(contentHTML string) string {
	out := reDetailsHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Calculation Details</h2>`)
	out = reEstimateHeading.ReplaceAllString(out, `<h2$1 data-highlight="true">$2</h2>`)
	return out
}

func buildMetaHTML(meta Meta) string {
	var out strings.Builder
	if ref := strings.TrimSpace(meta.Reference); ref != "" {
		out.WriteString("<div><strong>Reference:</strong> " + html.EscapeString(ref) + "</div>")
	}
	if !meta.Date.IsZero() {
		out.WriteString("<div><strong>Date:</strong> " + html.EscapeString(meta.Date.Format("2 January 2006 15:04 MST")) + "</div>")
	}
	return out.String()
}

func buildBadgeHTML(badges []string) string {
	var out strings.Builder
	for _, b := range badges {
		if b = strings.TrimSpace(b); b != "" {
			out.WriteString("<span class='doc-badge'>" + html.EscapeString(b) + "</span>")
		}
	}
	return out.String()
}

// PDFRenderer turns a standalone HTML page into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, htmlDoc string) ([]byte, error)
}

type ChromiumPDFRenderer struct {
	chromePath string
}

// NewChromiumPDFRenderer uses chromePath when set and otherwise looks for a
// system Chromium.
func NewChromiumPDFRenderer(chromePath string) *ChromiumPDFRenderer {
	if strings.TrimSpace(chromePath) == "" {
		chromePath = detectChromePath()
	}
	return &ChromiumPDFRenderer{chromePath: chromePath}
}

func (r *ChromiumPDFRenderer) ChromePath() string { return r.chromePath }

func (r *ChromiumPDFRenderer) Render(ctx context.Context, htmlDoc string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> / <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

func detectChromePath() string {
	for _, p := range []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
