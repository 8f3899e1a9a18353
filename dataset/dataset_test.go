package dataset

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"BDDLabelServer/bdd"
	iface "BDDLabelServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if strings.HasSuffix(path, ".jpg") {
		require.NoError(t, jpeg.Encode(f, img, nil))
		return
	}
	require.NoError(t, png.Encode(f, img))
}

const testLabels = `[
	{
		"name": "a.png",
		"attributes": {"weather": "overcast", "scene": "city street"},
		"labels": [
			{"category": "car", "id": 7, "box2d": {"x1": 10, "y1": 20, "x2": 110, "y2": 120},
			 "attributes": {"occluded": false, "truncated": true}},
			{"category": "traffic light", "box2d": {"x1": 0, "y1": 0, "x2": 50, "y2": 50},
			 "attributes": {"trafficLightColor": "green"}}
		]
	},
	{
		"name": "b.png",
		"attributes": {"timeofday": "night"},
		"labels": [
			{"category": "person", "box2d": {"x1": 25, "y1": 5, "x2": 75, "y2": 45}, "attributes": {}}
		]
	}
]`

func makeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, DataDir, "a.png"), 200, 200)
	writeImage(t, filepath.Join(dir, DataDir, "b.png"), 100, 50)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabelsFile), []byte(testLabels), 0o644))
	return dir
}

func collect(t *testing.T, im *Importer) []*Sample {
	t.Helper()
	var samples []*Sample
	for {
		s, err := im.Next()
		if errors.Is(err, io.EOF) {
			return samples
		}
		require.NoError(t, err)
		samples = append(samples, s)
	}
}

func TestImporter(t *testing.T) {
	dir := makeDataset(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DataDir, ".DS_Store"), []byte("x"), 0o644))

	im := NewImporter(dir, nil)
	_, err := im.Next()
	assert.ErrorIs(t, err, ErrNotSetup)

	require.NoError(t, im.Setup())
	assert.True(t, im.HasImageMetadata())
	assert.Equal(t, 2, im.Len())
	assert.Equal(t, []string{"a.png", "b.png"}, im.Filenames())

	samples := collect(t, im)
	require.Len(t, samples, 2)

	t.Run("Test first sample", func(t *testing.T) {
		s := samples[0]
		assert.Equal(t, "a.png", s.Filename)
		assert.Equal(t, filepath.Join(dir, DataDir, "a.png"), s.ImagePath)
		assert.Equal(t, 200, s.Metadata.Width)
		assert.Equal(t, "image/png", s.Metadata.MimeType)
		assert.Equal(t, []iface.Attribute{
			iface.CategoricalAttr("weather", "overcast"),
			iface.CategoricalAttr("scene", "city street"),
		}, s.Labels.Attrs)
		require.Len(t, s.Labels.Objects, 2)
		car := s.Labels.Objects[0]
		assert.Equal(t, "car", car.Label)
		assert.InDelta(t, 0.05, car.BoundingBox.X, 1e-9)
		assert.InDelta(t, 0.5, car.BoundingBox.Width, 1e-9)
		assert.Equal(t, []iface.Attribute{
			iface.BoolAttr("occluded", false),
			iface.BoolAttr("truncated", true),
		}, car.Attrs)
	})

	t.Run("Test second sample uses its own frame size", func(t *testing.T) {
		box := samples[1].Labels.Objects[0].BoundingBox
		assert.InDelta(t, 0.25, box.X, 1e-9)
		assert.InDelta(t, 0.1, box.Y, 1e-9)
		assert.InDelta(t, 0.5, box.Width, 1e-9)
		assert.InDelta(t, 0.8, box.Height, 1e-9)
	})

	t.Run("Test Reset and Load", func(t *testing.T) {
		im.Reset()
		s, err := im.Next()
		require.NoError(t, err)
		assert.Equal(t, "a.png", s.Filename)

		s, err = im.Load("b.png")
		require.NoError(t, err)
		assert.Equal(t, "b.png", s.Filename)
	})
}

func TestImporter_Unlabeled(t *testing.T) {
	dir := makeDataset(t)
	writeImage(t, filepath.Join(dir, DataDir, "0-unlabeled.png"), 10, 10)

	im := NewImporter(dir, nil)
	require.NoError(t, im.Setup())
	_, err := im.Next()
	assert.ErrorIs(t, err, ErrUnlabeledImage)

	im = NewImporter(dir, nil)
	im.SkipUnlabeled = true
	require.NoError(t, im.Setup())
	assert.Len(t, collect(t, im), 2)
}

func TestImporter_MalformedLabels(t *testing.T) {
	dir := makeDataset(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabelsFile), []byte(`[{"labels": []}]`), 0o644))

	im := NewImporter(dir, nil)
	err := im.Setup()
	var me *bdd.MalformedInputError
	require.True(t, errors.As(err, &me), "got %v", err)
	_, err = im.Next()
	assert.ErrorIs(t, err, ErrNotSetup)
}

func TestImporter_MissingField(t *testing.T) {
	dir := makeDataset(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabelsFile),
		[]byte(`[{"name": "a.png", "labels": [{"category": "car"}]}, {"name": "b.png"}]`), 0o644))

	im := NewImporter(dir, nil)
	require.NoError(t, im.Setup())
	_, err := im.Next()
	var mfe *bdd.MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "box2d", mfe.Field)

	s, err := im.Next()
	require.NoError(t, err)
	assert.Equal(t, "b.png", s.Filename)
}

func TestExporter_FilenameCollision(t *testing.T) {
	src := t.TempDir()
	first := filepath.Join(src, "one", "img.jpg")
	second := filepath.Join(src, "two", "img.jpg")
	writeImage(t, first, 20, 10)
	writeImage(t, second, 30, 15)

	out := t.TempDir()
	ex := NewExporter(out)
	assert.True(t, ex.RequiresImageMetadata())
	require.NoError(t, ex.Setup())

	n1, err := ex.ExportSample(first, &iface.ImageLabels{}, nil)
	require.NoError(t, err)
	n2, err := ex.ExportSample(second, &iface.ImageLabels{}, nil)
	require.NoError(t, err)
	require.NoError(t, ex.Close())

	assert.Equal(t, "img.jpg", n1)
	assert.NotEqual(t, n1, n2)
	assert.Equal(t, "img-2.jpg", n2)
	assert.FileExists(t, filepath.Join(out, DataDir, n1))
	assert.FileExists(t, filepath.Join(out, DataDir, n2))

	records, err := bdd.ParseRecords(mustRead(t, filepath.Join(out, LabelsFile)))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "img.jpg", records[0].FileName())
	assert.Equal(t, "img-2.jpg", records[1].FileName())
}

func (a *nameAllocator) allocate(base string) string {
	filename, count := a.next(base)
	a.commit(base, filename, count)
	return filename
}

func TestExporter_FailedSampleReleasesName(t *testing.T) {
	src := t.TempDir()
	corrupt := filepath.Join(src, "bad", "img.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(corrupt), 0o755))
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0o644))
	good := filepath.Join(src, "good", "img.jpg")
	writeImage(t, good, 20, 10)

	out := t.TempDir()
	ex := NewExporter(out)
	require.NoError(t, ex.Setup())

	_, err := ex.ExportSample(filepath.Join(src, "missing", "img.jpg"), &iface.ImageLabels{}, nil)
	require.Error(t, err)
	_, err = ex.ExportSample(corrupt, &iface.ImageLabels{}, nil)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(out, DataDir, "img.jpg"))

	name, err := ex.ExportSample(good, &iface.ImageLabels{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "img.jpg", name)
	require.NoError(t, ex.Close())
	assert.FileExists(t, filepath.Join(out, DataDir, "img.jpg"))

	records, err := bdd.ParseRecords(mustRead(t, filepath.Join(out, LabelsFile)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "img.jpg", records[0].FileName())
}

func TestNameAllocator(t *testing.T) {
	a := newNameAllocator()
	assert.Equal(t, "img.jpg", a.allocate("img.jpg"))
	assert.Equal(t, "img-2.jpg", a.allocate("img.jpg"))
	assert.Equal(t, "img-3.png", a.allocate("img.png"))
	assert.Equal(t, "img-3-2.png", a.allocate("img-3.png"))
	assert.Equal(t, "other.jpg", a.allocate("other.jpg"))
	assert.Equal(t, "img-4.jpg", a.allocate("img.jpg"))

	b := newNameAllocator()
	assert.Equal(t, "img-2.jpg", b.allocate("img-2.jpg"))
	assert.Equal(t, "img.jpg", b.allocate("img.jpg"))
	assert.Equal(t, "img-3.jpg", b.allocate("img.jpg"))

	c := newNameAllocator()
	name, _ := c.next("img.jpg")
	assert.Equal(t, "img.jpg", name)
	assert.Equal(t, "img.jpg", c.allocate("img.jpg"))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestImportExportRoundTrip(t *testing.T) {
	dir := makeDataset(t)
	im := NewImporter(dir, nil)
	require.NoError(t, im.Setup())
	samples := collect(t, im)

	out := t.TempDir()
	ex := NewExporter(out)
	require.NoError(t, ex.Setup())
	for _, s := range samples {
		meta := s.Metadata
		_, err := ex.ExportSample(s.ImagePath, s.Labels, &meta)
		require.NoError(t, err)
	}
	require.NoError(t, ex.Close())

	var original, exported []map[string]any
	require.NoError(t, json.Unmarshal([]byte(testLabels), &original))
	require.NoError(t, json.Unmarshal(mustRead(t, filepath.Join(out, LabelsFile)), &exported))
	require.Len(t, exported, 2)

	for i := range original {
		assert.Equal(t, original[i]["name"], exported[i]["name"])
		assert.Equal(t, original[i]["attributes"], exported[i]["attributes"])
		ol := original[i]["labels"].([]any)
		el := exported[i]["labels"].([]any)
		require.Len(t, el, len(ol))
		for j := range ol {
			o := ol[j].(map[string]any)
			e := el[j].(map[string]any)
			assert.Equal(t, o["category"], e["category"])
			assert.Equal(t, float64(j), e["id"])
			assert.Equal(t, true, e["manualAttributes"])
			assert.Equal(t, true, e["manualShape"])
			ob := o["box2d"].(map[string]any)
			eb := e["box2d"].(map[string]any)
			for _, k := range []string{"x1", "y1", "x2", "y2"} {
				assert.InDelta(t, ob[k].(float64), eb[k].(float64), 1e-6, k)
			}
		}
	}

	im2 := NewImporter(out, nil)
	require.NoError(t, im2.Setup())
	again := collect(t, im2)
	require.Len(t, again, 2)
	assert.Equal(t, samples[0].Labels.Attrs, again[0].Labels.Attrs)
	assert.InDelta(t, samples[1].Labels.Objects[0].BoundingBox.Height, again[1].Labels.Objects[0].BoundingBox.Height, 1e-9)
}

func TestExporter_Resize(t *testing.T) {
	src := filepath.Join(t.TempDir(), "wide.png")
	writeImage(t, src, 400, 200)
	labels := &iface.ImageLabels{Objects: []iface.DetectedObject{{
		Label:       "car",
		BoundingBox: iface.RelativeBox{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
	}}}

	out := t.TempDir()
	ex := NewExporter(out)
	ex.ResizeLonger = 100
	require.NoError(t, ex.Setup())
	name, err := ex.ExportSample(src, labels, nil)
	require.NoError(t, err)

	meta, err := StdImages{}.BuildFor(filepath.Join(out, DataDir, name))
	require.NoError(t, err)
	assert.Equal(t, 100, meta.Width)
	assert.Equal(t, 50, meta.Height)

	records := ex.Records()
	require.Len(t, records, 1)
	b := records[0].Labels[0].Box2D
	assert.InDelta(t, 25, b.X1, 1e-9)
	assert.InDelta(t, 12.5, b.Y1, 1e-9)
	assert.InDelta(t, 75, b.X2, 1e-9)
	assert.InDelta(t, 37.5, b.Y2, 1e-9)

	small := filepath.Join(t.TempDir(), "small.png")
	writeImage(t, small, 40, 20)
	name, err = ex.ExportSample(small, labels, nil)
	require.NoError(t, err)
	meta, err = StdImages{}.BuildFor(filepath.Join(out, DataDir, name))
	require.NoError(t, err)
	assert.Equal(t, 40, meta.Width)
}

func TestExporter_NotSetup(t *testing.T) {
	ex := NewExporter(t.TempDir())
	_, err := ex.ExportSample("x.png", nil, nil)
	assert.ErrorIs(t, err, ErrNotSetup)
	assert.ErrorIs(t, ex.Close(), ErrNotSetup)
}

func TestSampleParser(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "img.png")
	writeImage(t, imgPath, 200, 100)
	annoPath := filepath.Join(dir, "img.json")
	require.NoError(t, os.WriteFile(annoPath, []byte(`{
		"name": "img.png",
		"attributes": {"weather": "rainy"},
		"labels": [{"category": "bus", "box2d": {"x1": 20, "y1": 10, "x2": 120, "y2": 60}}]
	}`), 0o644))

	p := NewSampleParser(nil)

	t.Run("Test ParseLabelFile", func(t *testing.T) {
		labels, err := p.ParseLabelFile(imgPath, annoPath)
		require.NoError(t, err)
		require.Len(t, labels.Objects, 1)
		box := labels.Objects[0].BoundingBox
		assert.InDelta(t, 0.1, box.X, 1e-9)
		assert.InDelta(t, 0.1, box.Y, 1e-9)
		assert.InDelta(t, 0.5, box.Width, 1e-9)
		assert.InDelta(t, 0.5, box.Height, 1e-9)
	})

	t.Run("Test Parse", func(t *testing.T) {
		anno, err := ReadAnnotationFile(annoPath)
		require.NoError(t, err)
		img, labels, err := p.Parse(imgPath, anno)
		require.NoError(t, err)
		assert.Equal(t, iface.FrameSize{Width: 200, Height: 100}, FrameSizeOf(img))
		assert.Equal(t, "rainy", labels.Attrs[0].Category)
	})

	t.Run("Test errors", func(t *testing.T) {
		_, err := p.ParseLabelFile(filepath.Join(dir, "missing.png"), annoPath)
		assert.Error(t, err)

		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`[]`), 0o644))
		_, err = p.ParseLabelFile(imgPath, bad)
		var me *bdd.MalformedInputError
		assert.True(t, errors.As(err, &me))
	})

	t.Run("Test nil annotation", func(t *testing.T) {
		_, err := p.ParseLabel(imgPath, nil)
		var me *bdd.MalformedInputError
		require.True(t, errors.As(err, &me), "got %v", err)
		assert.Equal(t, -1, me.Index)
	})
}

func TestStdImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	writeImage(t, src, 33, 17)

	meta, err := StdImages{}.BuildFor(src)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", meta.MimeType)
	assert.Equal(t, iface.FrameSize{Width: 33, Height: 17}, meta.FrameSize())
	assert.Equal(t, 3, meta.NumChannels)
	assert.Positive(t, meta.SizeBytes)

	dst := filepath.Join(dir, "nested", "b.jpg")
	require.NoError(t, StdImages{}.Copy(src, dst))
	assert.Equal(t, mustRead(t, src), mustRead(t, dst))

	_, err = StdImages{}.BuildFor(filepath.Join(dir, "none.jpg"))
	assert.Error(t, err)
}
