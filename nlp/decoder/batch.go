package decoder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lixiaoqing/t2t/nlp/format/bracket"
	"github.com/lixiaoqing/t2t/nlp/types"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Translation is what a batch produces for one input line
type Translation struct {
	ID         int
	Text       string
	NBest      []Entry
	Derivation []string
}

// Cache memoizes translations by key; values must round-trip through gob
type Cache interface {
	Get(key string, value any) (bool, error)
	Set(key string, value any) error
}

// Batch decodes many sentences on a bounded pool
type Batch struct {
	Decoder     *Decoder
	Threads     int
	Derivations bool
	Cache       Cache
	Log         *slog.Logger
}

func (b *Batch) logger() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return b.Decoder.Log
}

// Translate decodes every line; the result at index i belongs to lines[i].
// A line that is not a well formed tree yields an empty translation.
func (b *Batch) Translate(ctx context.Context, lines []string) ([]*Translation, error) {
	ctx, span := tracer.Start(ctx, "decoder.Batch",
		trace.WithAttributes(
			attribute.Int("batch.size", len(lines)),
			attribute.Int("batch.threads", b.Threads),
		),
	)
	defer span.End()

	results := make([]*Translation, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Threads, 1))
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			t, err := b.TranslateLine(gctx, line, b.Decoder.Config.NBest)
			if err != nil {
				return errors.Wrapf(err, "sentence %d", i)
			}
			t.ID = i
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// TranslateLine decodes one bracketed tree keeping up to nbest entries
func (b *Batch) TranslateLine(ctx context.Context, line string, nbest int) (*Translation, error) {
	log := b.logger()
	key := b.Decoder.CacheKey(fmt.Sprintf("%d|%t|%s", nbest, b.Derivations, line))
	if b.Cache != nil {
		var cached Translation
		found, err := b.Cache.Get(key, &cached)
		if err != nil {
			log.Warn("translation cache read failed", "error", err)
		}
		if found {
			cacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		cacheLookups.WithLabelValues("miss").Inc()
	}

	tree, err := bracket.Parse(line)
	if err != nil {
		if errors.Is(err, types.ErrEmptyTree) {
			log.Debug("empty input line")
		} else {
			log.Warn("skipping malformed tree", "error", err)
		}
		return &Translation{}, nil
	}
	result, err := b.Decoder.Decode(ctx, tree)
	if err != nil {
		return nil, err
	}
	t := &Translation{Text: result.Translation(), NBest: result.NBest(nbest)}
	if b.Derivations {
		t.Derivation = result.Derivation()
	}
	if b.Cache != nil {
		if err := b.Cache.Set(key, t); err != nil {
			log.Warn("translation cache write failed", "error", err)
		}
	}
	return t, nil
}
