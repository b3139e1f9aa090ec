package hydrosheds

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/watershed-cli/internal/basin"
	"github.com/sells-group/watershed-cli/internal/model"
	"github.com/sells-group/watershed-cli/internal/pipeline"
	"github.com/sells-group/watershed-cli/internal/river"
)

// LoadOptions tunes snapshot loading.
type LoadOptions struct {
	// Concurrency bounds parallel shapefile parsing. Default 4.
	Concurrency int
	// CheckNesting verifies the cross-level prefix invariant after load.
	CheckNesting bool
	BasinOptions []basin.Option
	RiverOptions []river.Option
}

// LoadHierarchy parses every level shapefile present in paths. Levels 1
// and 12 are required; intermediate levels may be absent, in which case
// bounding-level search stops before them.
func LoadHierarchy(ctx context.Context, paths Paths, opts LoadOptions) (*basin.Hierarchy, error) {
	log := zap.L().With(zap.String("component", "hydrosheds.loader"), zap.String("region", paths.Region))
	start := time.Now()

	levels := make([]int, 0, len(paths.Basins))
	for level, path := range paths.Basins {
		if _, err := os.Stat(path); err != nil {
			if level == basin.MinLevel || level == basin.MaxLevel {
				return nil, eris.Wrapf(err, "hydrosheds: level %d shapefile", level)
			}
			log.Warn("level shapefile missing", zap.Int("level", level), zap.String("path", path))
			continue
		}
		levels = append(levels, level)
	}
	sort.Ints(levels)

	var (
		mu  sync.Mutex
		all []model.Basin
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(opts.Concurrency))
	for _, level := range levels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bs, err := ReadBasins(paths.Basins[level], level)
			if err != nil {
				return err
			}
			log.Debug("level parsed", zap.Int("level", level), zap.Int("basins", len(bs)))
			mu.Lock()
			all = append(all, bs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h, err := basin.New(all, opts.BasinOptions...)
	if err != nil {
		return nil, eris.Wrap(err, "hydrosheds: build hierarchy")
	}
	if opts.CheckNesting {
		if err := h.CheckNesting(); err != nil {
			return nil, eris.Wrap(err, "hydrosheds: nesting")
		}
	}

	log.Info("hierarchy loaded",
		zap.Ints("levels", levels),
		zap.Int("basins", len(all)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return h, nil
}

// LoadNetwork parses the HydroRIVERS shapefile and indexes it.
func LoadNetwork(paths Paths, opts LoadOptions) (*river.Network, error) {
	start := time.Now()
	reaches, err := ReadRivers(paths.Rivers)
	if err != nil {
		return nil, err
	}
	n, err := river.NewNetwork(reaches, opts.RiverOptions...)
	if err != nil {
		return nil, eris.Wrap(err, "hydrosheds: build network")
	}
	zap.L().Info("hydrosheds: river network loaded",
		zap.String("region", paths.Region),
		zap.Int("reaches", n.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

// LoadSnapshot loads the network and hierarchy in parallel.
func LoadSnapshot(ctx context.Context, paths Paths, opts LoadOptions) (pipeline.Snapshot, error) {
	var snap pipeline.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := LoadNetwork(paths, opts)
		snap.Network = n
		return err
	})
	g.Go(func() error {
		h, err := LoadHierarchy(gctx, paths, opts)
		snap.Hierarchy = h
		return err
	})
	if err := g.Wait(); err != nil {
		return pipeline.Snapshot{}, err
	}
	return snap, nil
}

func concurrency(n int) int {
	if n <= 0 {
		return 4
	}
	return n
}
