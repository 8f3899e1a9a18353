package engine

import (
	"testing"

	"BDDLabelServer/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadImages(t *testing.T) {
	t.Run("Test std", func(t *testing.T) {
		for _, name := range []string{"", "std", "STD"} {
			images, err := LoadImages(name)
			require.NoError(t, err)
			assert.IsType(t, dataset.StdImages{}, images)
		}
	})

	t.Run("Test unknown", func(t *testing.T) {
		_, err := LoadImages("ncnn")
		assert.EqualError(t, err, "unsupported image backend: ncnn")
	})
}
