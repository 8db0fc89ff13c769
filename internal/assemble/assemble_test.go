package assemble

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclean/internal/cleanup"
	"doclean/internal/imagefile"
)

func cleanedPages(t *testing.T, n int) []cleanup.CleanedPage {
	t.Helper()
	dir := t.TempDir()
	out := make([]cleanup.CleanedPage, n)
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 40, 60))
		for j := range img.Pix {
			img.Pix[j] = 255
		}
		path := filepath.Join(dir, fmt.Sprintf("%d.png", i))
		require.NoError(t, imagefile.SavePNG(path, img))
		out[i] = cleanup.CleanedPage{Index: i, Path: path}
	}
	return out
}

func TestAssemble(t *testing.T) {
	out := filepath.Join(t.TempDir(), "intermediate.pdf")
	a := &Assembler{Log: zerolog.Nop()}

	require.NoError(t, a.Assemble(context.Background(), cleanedPages(t, 3), out))

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAssembleReordersByIndex(t *testing.T) {
	pages := cleanedPages(t, 2)
	pages[0], pages[1] = pages[1], pages[0]

	out := filepath.Join(t.TempDir(), "intermediate.pdf")
	require.NoError(t, (&Assembler{Log: zerolog.Nop()}).Assemble(context.Background(), pages, out))
	assert.FileExists(t, out)
}

func TestAssembleErrors(t *testing.T) {
	a := &Assembler{Log: zerolog.Nop()}
	out := filepath.Join(t.TempDir(), "intermediate.pdf")

	err := a.Assemble(context.Background(), nil, out)
	assert.ErrorIs(t, err, ErrAssembly)

	missing := cleanedPages(t, 2)
	missing[1].Path = filepath.Join(t.TempDir(), "gone.png")
	err = a.Assemble(context.Background(), missing, out)
	assert.ErrorIs(t, err, ErrAssembly)

	gap := cleanedPages(t, 2)
	gap[1].Index = 5
	err = a.Assemble(context.Background(), gap, out)
	assert.ErrorIs(t, err, ErrAssembly)

	assert.NoFileExists(t, out)
}
