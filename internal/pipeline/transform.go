package pipeline

import (
	"context"

	"github.com/shpitdev/shz-loader/internal/star"
	"github.com/shpitdev/shz-loader/internal/track"
	"github.com/shpitdev/shz-loader/pkg/pipeline/core"
	"github.com/shpitdev/shz-loader/pkg/pipeline/schema"
	"github.com/shpitdev/shz-loader/pkg/pipeline/worker"
)

type Options struct {
	// Workers bounds how many stars are transformed at once. The default of
	// one transforms stars sequentially.
	Workers int
}

// Transformer is the full-fidelity per-star processor.
var Transformer core.Processor[*star.Star, *star.Star] = core.ProcessFunc[*star.Star, *star.Star](TransformStar)

// Transform parses and aggregates the track of every star. The first
// malformed track aborts the whole run; the input stars are not modified.
func Transform(ctx context.Context, stars []*star.Star, opts Options) ([]*star.Star, error) {
	out, err := worker.ProcessAll(ctx, stars, Transformer.Process, worker.Options{
		Workers:       opts.Workers,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err != nil {
		return nil, err
	}
	return worker.Outputs(out), nil
}

// TransformStar returns a copy of s with its track parsed, its bounds set and
// its raw track and simulation-runtime fields removed.
func TransformStar(_ context.Context, s *star.Star) (*star.Star, error) {
	samples, err := track.Parse(s.Raw)
	if err != nil {
		return nil, &star.MalformedTrackError{Index: s.Index, Name: s.Name(), Len: len(s.Raw)}
	}
	bounds := track.Aggregate(samples)

	out := s.Clone()
	out.DropRaw()
	for _, name := range schema.Stars.Excluded {
		out.Fields.Delete(name)
	}
	out.Track = samples
	out.Bounds = &bounds
	return out, nil
}

// StripOnly returns copies of stars with only the raw track removed. No
// track is parsed and every other field passes through.
func StripOnly(stars []*star.Star) []*star.Star {
	out := make([]*star.Star, len(stars))
	for i, s := range stars {
		c := s.Clone()
		c.DropRaw()
		c.Track = nil
		c.Bounds = nil
		out[i] = c
	}
	return out
}
