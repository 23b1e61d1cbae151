package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/compozy/autorelease/internal/domain"
)

// markdownUnescaper restores characters that html.EscapeString encodes but markdown needs.
// Angle brackets stay escaped.
var markdownUnescaper = strings.NewReplacer("&#34;", "\"", "&#39;", "'", "&amp;", "&")

var prBodyTmpl = template.Must(template.New("pr-body").Option("missingkey=error").Parse(prBodyTemplate))

// PreparePRBodyUseCase renders the body of the release pull request.
type PreparePRBodyUseCase struct{}

// sanitizeNotes escapes HTML in the notes while keeping headings, list items and blockquotes readable.
func (uc *PreparePRBodyUseCase) sanitizeNotes(notes string) string {
	if notes == "" {
		return ""
	}
	lines := strings.Split(html.EscapeString(notes), "\n")
	for i, line := range lines {
		if after, ok := strings.CutPrefix(line, "&gt; "); ok {
			lines[i] = "> " + after
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			lines[i] = markdownUnescaper.Replace(line)
		}
	}
	return strings.Join(lines, "\n")
}

// Execute renders the body for release.
func (uc *PreparePRBodyUseCase) Execute(_ context.Context, release *domain.Release) (string, error) {
	if release == nil || release.Version == nil {
		return "", fmt.Errorf("release and its version are required")
	}
	data := struct {
		Version string
		Branch  string
		Base    string
		Notes   string
	}{
		Version: html.EscapeString(release.Version.String()),
		Branch:  html.EscapeString(release.BranchName),
		Base:    html.EscapeString(release.BaseBranch),
		Notes:   uc.sanitizeNotes(release.Notes),
	}
	var buf bytes.Buffer
	if err := prBodyTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render PR body: %w", err)
	}
	// Rendered values must not reintroduce markup or template delimiters
	output := buf.String()
	lower := strings.ToLower(output)
	if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") ||
		strings.Contains(output, "{{") || strings.Contains(output, "}}") {
		return "", fmt.Errorf("potential injection detected in PR body output")
	}
	return output, nil
}

const prBodyTemplate = `
## Release {{.Version}}

This PR promotes ` + "`{{.Branch}}`" + ` into ` + "`{{.Base}}`" + ` for the release of version {{.Version}}.
It is merged automatically with a squash merge once all checks pass.

### Release notes

{{.Notes}}
`
