// Command snapvec traces a raster image into flat-color vector regions
// and writes the result as an SVG document.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"snapvec/internal/backend/opencv"
	"snapvec/internal/imaging"
	"snapvec/internal/logger"
	"snapvec/internal/pool"
	"snapvec/internal/svgout"
	"snapvec/internal/tracer"
)

const (
	AppName    = "snapvec"
	AppVersion = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		inPath     = flag.String("in", "", "input image (png, jpeg or gif)")
		outPath    = flag.String("out", "", "output SVG file (default: input with .svg extension)")
		presetPath = flag.String("preset", "", "YAML preset file; flags override preset values")

		colors    = flag.Int("colors", 16, "palette size target (2-64)")
		fitting   = flag.Int("fitting", 70, "path fitting strength (0-100)")
		corner    = flag.Int("corner", 60, "corner sharpness threshold (0-100)")
		noise     = flag.Int("noise", 4, "minimum region area in px² (0-100)")
		blur      = flag.Int("blur", 0, "pre-blur radius in source pixels")
		sampling  = flag.Int("sampling", 1, "processing upscale level (1, 2 or 4)")
		mode      = flag.String("mode", "color", "color mode: color, grayscale or binary")
		removeBG  = flag.Bool("remove-bg", false, "suppress the background color")
		bgColor   = flag.String("bg-color", "", "background color as #rrggbb (default: detect from border)")
		smartBG   = flag.Bool("smart-bg", true, "border flood fill background detection")
		noAA      = flag.Bool("no-aa", false, "disable the anti-alias majority filter")
		lock      = flag.String("lock", "", "comma-separated #rrggbb palette lock")
		parallel  = flag.Int("parallel", 0, "worker count for large images (default: CPU count - 1)")
		pure      = flag.Bool("pure", false, "skip the OpenCV backend")
		verbose   = flag.Bool("verbose", false, "debug logging")
		version   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", AppName, AppVersion)
		return nil
	}
	if *inPath == "" {
		flag.Usage()
		return fmt.Errorf("missing -in")
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsoleLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := tracer.DefaultParams()
	if *presetPath != "" {
		preset, err := LoadPreset(*presetPath)
		if err != nil {
			return err
		}
		if err := preset.Apply(&params); err != nil {
			return err
		}
	}
	if err := applyFlags(&params, *colors, *fitting, *corner, *noise, *blur, *sampling, *mode, *removeBG, *bgColor, *smartBG, *noAA, *lock); err != nil {
		return err
	}

	buf, err := loadImage(*inPath)
	if err != nil {
		return err
	}
	log.Info("main", "image loaded", map[string]interface{}{
		"path":   *inPath,
		"width":  buf.Width,
		"height": buf.Height,
	})

	engineOpts := []tracer.Option{
		tracer.WithLogger(log),
		tracer.WithMarkup(true),
		tracer.WithStatusFunc(func(event tracer.StatusEvent) {
			if event.Code == tracer.StatusDegraded {
				log.Warning("main", event.Message, map[string]interface{}{"error": fmt.Sprint(event.Err)})
			}
		}),
	}
	if !*pure {
		backend, err := opencv.New()
		if err != nil {
			log.Warning("main", "opencv backend unavailable, using pure path", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			engineOpts = append(engineOpts, tracer.WithBackend(backend))
		}
	}

	poolOpts := []pool.Option{
		pool.WithLogger(log),
		pool.WithMarkup(true),
		pool.WithEngineOptions(engineOpts...),
	}
	if *parallel > 0 {
		poolOpts = append(poolOpts, pool.WithSize(*parallel))
	}
	workers := pool.New(poolOpts...)

	result, err := workers.Trace(ctx, buf, params)
	if err != nil {
		return err
	}
	log.Info("main", "trace complete", map[string]interface{}{
		"paths":  len(result.Paths),
		"colors": len(result.Palette),
	})

	out := *outPath
	if out == "" {
		out = replaceExt(*inPath, ".svg")
	}
	if err := writeSVG(out, result); err != nil {
		return err
	}
	log.Info("main", "svg written", map[string]interface{}{"path": out})
	return nil
}

func applyFlags(params *tracer.Params, colors, fitting, corner, noise, blur, sampling int, mode string, removeBG bool, bgColor string, smartBG, noAA bool, lock string) error {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["colors"] {
		params.Colors = colors
	}
	if set["fitting"] {
		params.Fitting = fitting
	}
	if set["corner"] {
		params.Corner = corner
	}
	if set["noise"] {
		params.Noise = noise
	}
	if set["blur"] {
		params.BlurRadius = blur
	}
	if set["sampling"] {
		params.Sampling = sampling
	}
	if set["mode"] {
		m, err := imaging.ParseMode(mode)
		if err != nil {
			return err
		}
		params.Mode = m
	}
	if set["remove-bg"] {
		params.RemoveBackground = removeBG
	}
	if set["bg-color"] {
		params.BackgroundColor = bgColor
	}
	if set["smart-bg"] {
		params.SmartBackground = smartBG
	}
	if set["no-aa"] {
		params.AntiAlias = !noAA
	}
	if set["lock"] && lock != "" {
		params.PaletteLock = strings.Split(lock, ",")
		for i := range params.PaletteLock {
			params.PaletteLock[i] = strings.TrimSpace(params.PaletteLock[i])
		}
	}
	return nil
}

func loadImage(path string) (*imaging.PixelBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return imaging.FromImage(img), nil
}

func writeSVG(path string, result *tracer.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if err := svgout.Write(f, result); err != nil {
		return err
	}
	return f.Close()
}

func replaceExt(path, ext string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		return path[:i] + ext
	}
	return path + ext
}
