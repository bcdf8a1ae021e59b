package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScreenshotWriter_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	steps := []Step{
		{Index: 0, Screenshot: "aGVsbG8="},
		{Index: 1},
		{Index: 2, Screenshot: "data:image/png;base64,d29ybGQ="},
		{Index: 3, Screenshot: "d29ybGQ"},
	}

	w := NewScreenshotWriter(2, zaptest.NewLogger(t))
	paths, err := w.Save(context.Background(), steps, dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "step_0.png"),
		filepath.Join(dir, "step_2.png"),
		filepath.Join(dir, "step_3.png"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestScreenshotWriter_InvalidData(t *testing.T) {
	dir := t.TempDir()
	steps := []Step{{Index: 5, Screenshot: "!!!not base64!!!"}}

	w := NewScreenshotWriter(0, zaptest.NewLogger(t))
	paths, err := w.Save(context.Background(), steps, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 5")
	assert.Empty(t, paths)
}

func TestScreenshotWriter_InvalidStepDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	steps := []Step{{Index: 0, Screenshot: "!!!bad!!!"}}
	for i := 1; i <= 8; i++ {
		steps = append(steps, Step{Index: i, Screenshot: "aGVsbG8="})
	}
	steps = append(steps, Step{Index: 9, Screenshot: "%%%"})

	w := NewScreenshotWriter(1, zaptest.NewLogger(t))
	paths, err := w.Save(context.Background(), steps, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 0")
	assert.Contains(t, err.Error(), "step 9")
	require.Len(t, paths, 8)
	assert.Equal(t, filepath.Join(dir, "step_1.png"), paths[0])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestScreenshotWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewScreenshotWriter(1, zaptest.NewLogger(t))
	_, err := w.Save(ctx, []Step{{Index: 0, Screenshot: "aGVsbG8="}}, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
