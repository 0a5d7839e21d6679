// internal/workers/generation/compose-prompt/handler_test.go
package composeprompt

import (
	"context"
	"strings"
	"testing"

	"app-deployer/internal/common/logger"
	"app-deployer/internal/models"
	decodeattachments "app-deployer/internal/workers/attachments/decode-attachments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{PriorArtifactMaxChars: 40, CDNBaseURL: "https://cdn.jsdelivr.net"}
}

func sampleDigests() []decodeattachments.Digest {
	return []decodeattachments.Digest{
		{Name: "sales.csv", Kind: decodeattachments.KindTabular, Summary: "2 rows x 2 columns\ncolumns: region, total"},
		{Name: "logo.png", Kind: decodeattachments.KindImage, Summary: "png image, 3x2\ntext extraction: none"},
	}
}

func TestHandler_Execute_RoundOne(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	out, err := handler.Execute(context.Background(), &Input{
		Round:   1,
		Brief:   "Show a sales dashboard",
		Checks:  []string{"page has a title"},
		Digests: sampleDigests(),
	})
	require.NoError(t, err)

	p := out.Prompt
	assert.Contains(t, p, "Show a sales dashboard")
	assert.Contains(t, p, "- page has a title")
	assert.Contains(t, p, "- sales.csv (tabular)\n    2 rows x 2 columns\n    columns: region, total")
	assert.Contains(t, p, "- logo.png (image)")
	assert.Contains(t, p, "https://cdn.jsdelivr.net")
	assert.Contains(t, p, "no markdown code fences")
	assert.NotContains(t, p, "Current index.html")

	// Digest order follows input order.
	assert.Less(t, strings.Index(p, "sales.csv"), strings.Index(p, "logo.png"))
}

func TestHandler_Execute_Deterministic(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewNoOpLogger())
	input := &Input{Round: 1, Brief: "b", Digests: sampleDigests()}

	first, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.Prompt, second.Prompt)
}

func TestHandler_Execute_TemplateIndependentOfKind(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewNoOpLogger())

	withText, err := handler.Execute(context.Background(), &Input{Round: 1, Brief: "b", Digests: []decodeattachments.Digest{
		{Name: "a", Kind: decodeattachments.KindText, Summary: "S"},
	}})
	require.NoError(t, err)
	withImage, err := handler.Execute(context.Background(), &Input{Round: 1, Brief: "b", Digests: []decodeattachments.Digest{
		{Name: "a", Kind: decodeattachments.KindImage, Summary: "S"},
	}})
	require.NoError(t, err)

	assert.Equal(t,
		strings.Replace(withText.Prompt, "(text)", "(KIND)", 1),
		strings.Replace(withImage.Prompt, "(image)", "(KIND)", 1))
}

func TestHandler_Execute_RoundTwo(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))
	prior := "<!DOCTYPE html><html><body>" + strings.Repeat("x", 100) + "</body></html>"

	out, err := handler.Execute(context.Background(), &Input{
		Round:         2,
		Brief:         "add a footer",
		PriorBrief:    "Show a sales dashboard",
		PriorArtifact: prior,
	})
	require.NoError(t, err)

	assert.True(t, out.PriorArtifactTruncated)
	assert.Contains(t, out.Prompt, "Original brief:\nShow a sales dashboard")
	assert.Contains(t, out.Prompt, "Revision brief:\nadd a footer")
	assert.Contains(t, out.Prompt, prior[:40]+"\n(markup truncated)")
	assert.NotContains(t, out.Prompt, prior[:41])
	assert.Contains(t, out.Prompt, "Attachments (saved next to index.html under the same file names):\nNone")
}

func TestHandler_Execute_RoundTwoSources(t *testing.T) {
	short := "<html>a</html>"
	tests := []struct {
		name          string
		prior         string
		sources       []models.SourceFile
		wantContains  []string
		wantMissing   []string
		wantTruncated bool
	}{
		{
			name:  "all fit",
			prior: short,
			sources: []models.SourceFile{
				{Name: "app.js", Content: "let a=1"},
				{Name: "style.css", Content: "b{}"},
			},
			wantContains: []string{"Other files in the repository:\n--- app.js ---\nlet a=1\n--- style.css ---\nb{}"},
			wantMissing:  []string{"(remaining files omitted)"},
		},
		{
			name:  "second file dropped after cut",
			prior: short,
			sources: []models.SourceFile{
				{Name: "app.js", Content: strings.Repeat("y", 30)},
				{Name: "style.css", Content: "b{}"},
			},
			wantContains:  []string{"--- app.js ---\n" + strings.Repeat("y", 26) + "\n(remaining files omitted)"},
			wantMissing:   []string{strings.Repeat("y", 27), "style.css"},
			wantTruncated: true,
		},
		{
			name:          "markup spends the budget",
			prior:         strings.Repeat("z", 50),
			sources:       []models.SourceFile{{Name: "README.md", Content: "# app"}},
			wantContains:  []string{"Other files in the repository:\n(remaining files omitted)"},
			wantMissing:   []string{"README.md"},
			wantTruncated: true,
		},
		{
			name:        "no sources",
			prior:       short,
			wantMissing: []string{"Other files in the repository:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), logger.NewNoOpLogger())
			out, err := handler.Execute(context.Background(), &Input{
				Round:         2,
				Brief:         "add a footer",
				PriorArtifact: tt.prior,
				PriorSources:  tt.sources,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTruncated, out.PriorArtifactTruncated)
			for _, want := range tt.wantContains {
				assert.Contains(t, out.Prompt, want)
			}
			for _, missing := range tt.wantMissing {
				assert.NotContains(t, out.Prompt, missing)
			}
		})
	}
}

func TestHandler_Execute_RoundOneIgnoresSources(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewNoOpLogger())

	out, err := handler.Execute(context.Background(), &Input{
		Round:        1,
		Brief:        "build a page",
		PriorSources: []models.SourceFile{{Name: "app.js", Content: "let a=1"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, out.Prompt, "app.js")
}

func TestHandler_Execute_RoundTwoWithoutPrior(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewNoOpLogger())

	out, err := handler.Execute(context.Background(), &Input{Round: 2, Brief: "add a footer"})
	require.NoError(t, err)
	assert.False(t, out.PriorArtifactTruncated)
	assert.Contains(t, out.Prompt, "(not available; rebuild the page from the original brief)")
	assert.Contains(t, out.Prompt, "Original brief:\n(not recorded)")
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewNoOpLogger())

	_, err := handler.Execute(context.Background(), &Input{Round: 3, Brief: "b"})
	assert.ErrorIs(t, err, ErrInvalidRound)

	_, err = handler.Execute(context.Background(), &Input{Round: 1, Brief: "   "})
	assert.ErrorIs(t, err, ErrEmptyBrief)
}
