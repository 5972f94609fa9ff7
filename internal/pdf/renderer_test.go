package pdf

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncRenderer(t *testing.T) {
	var got []byte
	r := Func(func(_ context.Context, html []byte) ([]byte, error) {
		got = html
		return []byte("%PDF-1.4"), nil
	})

	out, err := r.Render(context.Background(), []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(out))
	assert.Equal(t, "<html></html>", string(got))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "A4", opts.PageSize)
	assert.NotZero(t, opts.Dpi)
}

func TestWkhtmltopdf_Render(t *testing.T) {
	if _, err := exec.LookPath("wkhtmltopdf"); err != nil {
		t.Skip("wkhtmltopdf not installed")
	}

	r := NewWkhtmltopdf(DefaultOptions())
	require.NoError(t, r.Available())

	out, err := r.Render(context.Background(), []byte("<html><body><h1>Report</h1></body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}
