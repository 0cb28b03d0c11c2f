package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("Photos from **summer** trips\nsee https://example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>summer</strong>")
	assert.Contains(t, out, "<br />")
	assert.Contains(t, out, `<a href="https://example.com">`)
}

func TestRenderDropsRawHTML(t *testing.T) {
	out, err := NewRenderer().Render(`hello <script>alert(1)</script>`)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestRenderEmpty(t *testing.T) {
	out, err := NewRenderer().Render("   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}
