// Package app wires the star export run: load, transform, render and store.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/shpitdev/shz-loader/internal/config"
	"github.com/shpitdev/shz-loader/internal/decode"
	"github.com/shpitdev/shz-loader/internal/emit"
	"github.com/shpitdev/shz-loader/internal/pipeline"
	"github.com/shpitdev/shz-loader/internal/star"
	"github.com/shpitdev/shz-loader/internal/version"
	"github.com/shpitdev/shz-loader/pkg/amf"
	"github.com/shpitdev/shz-loader/pkg/pipeline/core"
	localio "github.com/shpitdev/shz-loader/pkg/pipeline/io/local"
	"github.com/shpitdev/shz-loader/pkg/pipeline/schema"
)

// Runner executes one export. Source and Sink default to the local
// filesystem adapters built from Config.
type Runner struct {
	Config config.Config
	Fs     afero.Fs
	Logger log.Logger

	Source core.InputAdapter[*star.Star]
	Sink   core.OutputAdapter[localio.File]
}

// Run executes a single export with the local filesystem adapters.
func Run(ctx context.Context, fsys afero.Fs, cfg config.Config, logger log.Logger) error {
	return Runner{Config: cfg, Fs: fsys, Logger: logger}.Run(ctx)
}

// Run loads the dataset, renders the configured outputs and stores them. No
// output file is written unless every output was rendered.
func (r Runner) Run(ctx context.Context) error {
	cfg := r.Config
	logger := r.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "run", uuid.NewString())
	runStart := time.Now()

	mode := cfg.ExportMode()
	level.Info(logger).Log("msg", "export start", "version", version.Current, "mode", mode, "input", cfg.Input, "workers", cfg.Workers)

	source, err := r.source(logger)
	if err != nil {
		return err
	}
	sink := r.Sink
	if sink == nil {
		sink = localio.Sink{Fs: r.Fs}
	}

	loadStart := time.Now()
	stars, err := source.Load(ctx)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "loaded stars", "stars", len(stars), "duration", time.Since(loadStart).Round(time.Millisecond))

	renderStart := time.Now()
	var files []localio.File
	switch mode {
	case schema.ExportModeStrip:
		files, err = r.renderStrip(stars)
	default:
		files, err = r.renderFull(ctx, stars)
	}
	if err != nil {
		return err
	}
	level.Debug(logger).Log("msg", "rendered outputs", "files", len(files), "duration", time.Since(renderStart).Round(time.Millisecond))

	if err := sink.Store(ctx, files); err != nil {
		return star.NewIOError("write", paths(files), err)
	}
	for _, f := range files {
		level.Info(logger).Log("msg", "wrote output", "path", f.Path, "size", humanize.Bytes(uint64(len(f.Data))))
	}
	level.Info(logger).Log("msg", "export complete", "stars", len(stars), "duration", time.Since(runStart).Round(time.Millisecond))
	return nil
}

func (r Runner) source(logger log.Logger) (core.InputAdapter[*star.Star], error) {
	if r.Source != nil {
		return r.Source, nil
	}
	codec, err := decode.ParseCodec(r.Config.Compression)
	if err != nil {
		return nil, err
	}
	enc, err := amf.ParseEncoding(r.Config.Encoding)
	if err != nil {
		return nil, err
	}
	return decode.Source{
		Fs:   r.Fs,
		Path: r.Config.Input,
		Options: decode.Options{
			Codec:    codec,
			Encoding: enc,
			RawField: r.Config.RawField,
		},
		Logger: logger,
	}, nil
}

func (r Runner) emitter() *emit.Emitter {
	return emit.New(emit.Options{Binding: r.Config.Binding, TrackField: r.Config.TrackField})
}

func (r Runner) renderFull(ctx context.Context, stars []*star.Star) ([]localio.File, error) {
	out, err := pipeline.Transform(ctx, stars, pipeline.Options{Workers: r.Config.Workers})
	if err != nil {
		return nil, err
	}
	e := r.emitter()
	compact, err := e.Emit(out, false)
	if err != nil {
		return nil, err
	}
	pretty, err := e.Emit(out, true)
	if err != nil {
		return nil, err
	}
	return []localio.File{
		{Path: r.Config.Output, Data: compact},
		{Path: r.Config.PrettyOutput, Data: pretty},
	}, nil
}

func (r Runner) renderStrip(stars []*star.Star) ([]localio.File, error) {
	doc, err := r.emitter().Document(pipeline.StripOnly(stars), false)
	if err != nil {
		return nil, err
	}
	return []localio.File{{Path: r.Config.StripOutput, Data: doc}}, nil
}

func paths(files []localio.File) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Path
	}
	return strings.Join(names, ",")
}
