package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclean/internal/config"
	"doclean/internal/dating"
	"doclean/internal/imagefile"
	"doclean/internal/ocr"
	"doclean/internal/pages"
	"doclean/internal/runner"
)

// fakeUnpaper writes a bilevel page to the output path.
type fakeUnpaper struct{}

func (fakeUnpaper) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	out := args[len(args)-1]
	pbm := append([]byte("P4\n16 4\n"), 0xFF, 0xFF, 0x00, 0x00, 0xF0, 0x0F, 0x00, 0x00)
	return nil, nil, os.WriteFile(out, pbm, 0o644)
}

// fakeEngine copies its input and leaves per-page text in a retained
// directory, the way ocrmypdf does.
type fakeEngine struct {
	t       *testing.T
	texts   []string
	err     error
	textDir string
	opts    ocr.Options
}

func (f *fakeEngine) Run(_ context.Context, in, out string, opts ocr.Options) (string, error) {
	f.opts = opts
	if f.err != nil {
		return "", f.err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	f.textDir = f.t.TempDir()
	for i, text := range f.texts {
		name := filepath.Join(f.textDir, fmt.Sprintf("%06d_ocr_hocr.txt", i+1))
		if err := os.WriteFile(name, []byte(text), 0o644); err != nil {
			return "", err
		}
	}
	return f.textDir, nil
}

// textExtractor resolves each whole text as one ISO date.
type textExtractor struct{}

func (textExtractor) Extract(text string) ([]dating.Candidate, error) {
	d, err := time.Parse(time.DateOnly, text)
	if err != nil {
		return nil, nil
	}
	return []dating.Candidate{{Text: text, Date: d}}, nil
}

func scanDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		img := image.NewGray(image.Rect(0, 0, 30, 40))
		for i := range img.Pix {
			img.Pix[i] = uint8(60 + i%190)
		}
		require.NoError(t, imagefile.SavePNG(filepath.Join(dir, name), img))
	}
	return dir
}

func testConfig() Config {
	cfg := ConfigFrom(config.Default())
	cfg.CleanupTimeout = 0
	cfg.OCR.Timeout = 0
	return cfg
}

func testDeps(engine ocr.Engine) Deps {
	return Deps{
		Runner:    fakeUnpaper{},
		Engine:    engine,
		Extractor: textExtractor{},
		Now:       func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestRun(t *testing.T) {
	engine := &fakeEngine{t: t, texts: []string{"2023-06-10", "2020-01-01"}}
	p := New(testConfig(), testDeps(engine), zerolog.Nop())

	out := filepath.Join(t.TempDir(), "doc.pdf")
	res, err := p.Run(context.Background(), scanDir(t, "scan10.png", "scan2.png"), out)
	require.NoError(t, err)

	assert.Equal(t, out, res.OutputPath)
	assert.Equal(t, 2, res.PageCount)
	assert.False(t, res.Renamed)
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.Date)
	assert.Equal(t, "2023-06-10", res.Date.Format(time.DateOnly))

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "deu", engine.opts.Language)
	assert.True(t, engine.opts.Deskew)
	assert.DirExists(t, engine.textDir, "engine directory is left alone by default")
}

func TestRunRenamesWithDate(t *testing.T) {
	engine := &fakeEngine{t: t, texts: []string{"2023-06-10"}}
	cfg := testConfig()
	cfg.Rename = true
	cfg.PurgeOCRTemp = true

	out := filepath.Join(t.TempDir(), "doc.pdf")
	res, err := New(cfg, testDeps(engine), zerolog.Nop()).Run(context.Background(), scanDir(t, "a.png"), out)
	require.NoError(t, err)

	want := filepath.Join(filepath.Dir(out), "doc_2023-06-10.pdf")
	assert.True(t, res.Renamed)
	assert.Equal(t, want, res.OutputPath)
	assert.FileExists(t, want)
	assert.NoFileExists(t, out)
	assert.NoDirExists(t, engine.textDir)
}

func TestRunRenameWithoutDate(t *testing.T) {
	engine := &fakeEngine{t: t, texts: []string{"no date here"}}
	cfg := testConfig()
	cfg.Rename = true

	out := filepath.Join(t.TempDir(), "doc.pdf")
	res, err := New(cfg, testDeps(engine), zerolog.Nop()).Run(context.Background(), scanDir(t, "a.png"), out)
	require.NoError(t, err)

	assert.Nil(t, res.Date)
	assert.False(t, res.Renamed)
	assert.FileExists(t, out)
}

func TestRunEmptyInput(t *testing.T) {
	engine := &fakeEngine{t: t}
	out := filepath.Join(t.TempDir(), "doc.pdf")

	_, err := New(testConfig(), testDeps(engine), zerolog.Nop()).Run(context.Background(), t.TempDir(), out)
	assert.ErrorIs(t, err, pages.ErrNoPagesFound)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageCollect, stageErr.Stage)
	assert.NoFileExists(t, out)
}

func TestRunCleanupFailure(t *testing.T) {
	deps := testDeps(&fakeEngine{t: t})
	deps.Runner = runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, nil, &runner.ExitError{Name: name, ExitCode: 2}
	})

	out := filepath.Join(t.TempDir(), "doc.pdf")
	_, err := New(testConfig(), deps, zerolog.Nop()).Run(context.Background(), scanDir(t, "a.png", "b.png"), out)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageCleanup, stageErr.Stage)
	assert.Equal(t, 1, stageErr.Page)
	assert.NoFileExists(t, out)
}

func TestRunOCRFailure(t *testing.T) {
	engine := &fakeEngine{t: t, err: ocr.NewError("Run", ocr.ErrDiagnosticsParse, "")}
	out := filepath.Join(t.TempDir(), "doc.pdf")

	_, err := New(testConfig(), testDeps(engine), zerolog.Nop()).Run(context.Background(), scanDir(t, "a.png"), out)
	assert.ErrorIs(t, err, ocr.ErrDiagnosticsParse)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageOCR, stageErr.Stage)
	assert.NoFileExists(t, out)
}

func TestRunRejectsInvalidCompression(t *testing.T) {
	cfg := testConfig()
	cfg.Quality = 0

	_, err := New(cfg, testDeps(&fakeEngine{t: t}), zerolog.Nop()).Run(context.Background(), scanDir(t, "a.png"), filepath.Join(t.TempDir(), "doc.pdf"))
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageValidate, stageErr.Stage)
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(context.Context, ocr.Document) ([]string, error) {
	return nil, ocr.NewError("Recognize", ocr.ErrRecognitionFailed, "")
}

func TestRunRecognizerFailureKeepsOutput(t *testing.T) {
	deps := testDeps(&fakeEngine{t: t, texts: []string{"2023-06-10"}})
	deps.Recognizer = failingRecognizer{}

	out := filepath.Join(t.TempDir(), "doc.pdf")
	res, err := New(testConfig(), deps, zerolog.Nop()).Run(context.Background(), scanDir(t, "a.png"), out)
	require.NoError(t, err)
	assert.Nil(t, res.Date)
	assert.FileExists(t, out)
}

func TestDatedName(t *testing.T) {
	d := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "/tmp/scan_2023-06-10.pdf", DatedName("/tmp/scan.pdf", d))
	assert.Equal(t, "out_2023-06-10", DatedName("out", d))
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: StageCleanup, Page: 3, Err: fmt.Errorf("boom")}
	assert.Equal(t, "cleanup stage failed on page 3: boom", err.Error())

	err = &StageError{Stage: StageOCR, Err: fmt.Errorf("boom")}
	assert.Equal(t, "ocr stage failed: boom", err.Error())
}

// TestRunWithExternalTools drives the real unpaper and ocrmypdf binaries.
func TestRunWithExternalTools(t *testing.T) {
	for _, tool := range []string{"unpaper", "ocrmypdf"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
	if testing.Short() {
		t.Skip("skipping external tool run in short mode")
	}

	cfg := testConfig()
	cfg.Language = "eng"
	cfg.PurgeOCRTemp = true
	deps, closeFn, err := NewDeps(context.Background(), config.Default(), cfg.Language, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 850, 1100))
		for j := range img.Pix {
			img.Pix[j] = uint8(200 + (j*7+i)%56)
		}
		require.NoError(t, imagefile.SavePNG(filepath.Join(dir, fmt.Sprintf("page%d.png", i+1)), img))
	}

	out := filepath.Join(t.TempDir(), "doc.pdf")
	res, err := New(cfg, deps, zerolog.Nop()).Run(context.Background(), dir, out)
	require.NoError(t, err)

	n, err := api.PageCountFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Less(t, res.OutputSize, res.IntermediateSize)
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return f(ctx, name, args...)
}

func TestResultDocument(t *testing.T) {
	d := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)
	res := &Result{RunID: "r1", OutputPath: "/out/doc_2023-06-10.pdf", PageCount: 3, Date: &d, Renamed: true}

	doc := res.Document("/scans")
	assert.Equal(t, "/scans", doc.Source)
	assert.Equal(t, "/out/doc_2023-06-10.pdf", doc.Output)
	assert.Equal(t, 3, doc.Pages)
	assert.Equal(t, "2023-06-10", doc.DateString())

	assert.Empty(t, (&Result{}).Document("x").DateString())
}
