//go:build opencv

package engine

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCVImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 32))))
	require.NoError(t, f.Close())

	images, err := LoadImages(BackendOpenCV)
	require.NoError(t, err)

	t.Run("Test BuildFor", func(t *testing.T) {
		meta, err := images.BuildFor(path)
		require.NoError(t, err)
		assert.Equal(t, 64, meta.Width)
		assert.Equal(t, 32, meta.Height)
		assert.Equal(t, "image/png", meta.MimeType)
	})

	t.Run("Test DecodeFile", func(t *testing.T) {
		img, err := images.DecodeFile(path)
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
	})

	t.Run("Test missing", func(t *testing.T) {
		_, err := images.DecodeFile(filepath.Join(t.TempDir(), "none.png"))
		assert.Error(t, err)
	})
}
