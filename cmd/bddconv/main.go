// bddconv 读取一个 BDD 数据集并重新导出，可选缩放图像与生成带框预览图。
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"BDDLabelServer/dataset"
	"BDDLabelServer/engine"
	"BDDLabelServer/logger"
	"BDDLabelServer/render"

	"go.uber.org/zap"
)

type options struct {
	in            string
	out           string
	preview       string
	resize        int
	skipUnlabeled bool
	backend       string
	strokeWidth   float64
}

type summary struct {
	exported int
	skipped  int
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "input BDD dataset directory")
	flag.StringVar(&opts.out, "out", "", "output BDD dataset directory")
	flag.StringVar(&opts.preview, "preview", "", "write box preview PNGs to this directory")
	flag.IntVar(&opts.resize, "resize", 0, "downscale exported images so the longer side is at most N pixels")
	flag.BoolVar(&opts.skipUnlabeled, "skip-unlabeled", false, "skip images without a record in labels.json")
	flag.StringVar(&opts.backend, "backend", engine.BackendStd, "image backend: std|opencv")
	flag.Float64Var(&opts.strokeWidth, "stroke", 2, "preview box stroke width")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := logger.Init(*logLevel, true); err != nil {
		fmt.Fprintln(os.Stderr, "invalid log level:", err)
		os.Exit(2)
	}
	defer logger.Sync()
	if opts.in == "" || opts.out == "" {
		fmt.Fprintln(os.Stderr, "missing -in or -out")
		flag.Usage()
		os.Exit(2)
	}

	sum, err := run(opts)
	if err != nil {
		logger.Log().Error("conversion failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("summary: exported=%d skipped=%d\n", sum.exported, sum.skipped)
}

func run(opts options) (summary, error) {
	var sum summary
	if opts.resize < 0 {
		return sum, fmt.Errorf("invalid -resize %d", opts.resize)
	}
	images, err := engine.LoadImages(opts.backend)
	if err != nil {
		return sum, err
	}

	im := dataset.NewImporter(opts.in, images)
	im.SkipUnlabeled = opts.skipUnlabeled
	if err := im.Setup(); err != nil {
		return sum, err
	}
	ex := dataset.NewExporter(opts.out)
	ex.ResizeLonger = opts.resize
	ex.Decoder = images
	ex.Metadata = images
	if err := ex.Setup(); err != nil {
		return sum, err
	}
	if opts.preview != "" {
		if err := os.MkdirAll(opts.preview, 0o755); err != nil {
			return sum, err
		}
	}

	for {
		sample, err := im.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, err
		}
		filename, err := ex.ExportSample(sample.ImagePath, sample.Labels, &sample.Metadata)
		if err != nil {
			return sum, err
		}
		if opts.preview != "" {
			previewPath := filepath.Join(opts.preview, strings.TrimSuffix(filename, filepath.Ext(filename))+".png")
			if err := writePreview(images, sample, previewPath, opts.strokeWidth); err != nil {
				return sum, err
			}
		}
		sum.exported++
	}
	sum.skipped = im.Len() - sum.exported
	return sum, ex.Close()
}

func writePreview(images engine.Images, sample *dataset.Sample, path string, strokeWidth float64) error {
	img, err := images.DecodeFile(sample.ImagePath)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, render.Preview(img, sample.Labels, strokeWidth))
}
