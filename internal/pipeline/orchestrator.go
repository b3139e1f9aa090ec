package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/basin"
	"github.com/sells-group/watershed-cli/internal/geoprim"
	"github.com/sells-group/watershed-cli/internal/metrics"
	"github.com/sells-group/watershed-cli/internal/model"
	"github.com/sells-group/watershed-cli/internal/river"
	"github.com/sells-group/watershed-cli/internal/snap"
	"github.com/sells-group/watershed-cli/internal/upstream"
)

// Config holds the per-batch resolution parameters.
type Config struct {
	Method          upstream.Method
	SearchRadiusM   float64
	SampleIntervalM float64
	Concurrency     int
}

// DefaultConfig returns the parameters used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Method:          upstream.DefaultMethod,
		SearchRadiusM:   snap.DefaultSearchRadiusM,
		SampleIntervalM: snap.DefaultSampleIntervalM,
		Concurrency:     4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Method == 0 {
		c.Method = d.Method
	}
	if c.SearchRadiusM <= 0 {
		c.SearchRadiusM = d.SearchRadiusM
	}
	if c.SampleIntervalM <= 0 {
		c.SampleIntervalM = d.SampleIntervalM
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// Snapshot is the read-only data a batch resolves against.
type Snapshot struct {
	Network   *river.Network
	Hierarchy *basin.Hierarchy
}

// Orchestrator runs dams through snap, bounding level, outlet basin and
// upstream resolution.
type Orchestrator struct {
	cfg       Config
	network   *river.Network
	hierarchy *basin.Hierarchy
	snapper   *snap.Snapper
	finder    *basin.LevelFinder
	resolver  upstream.Resolver
	sinks     []Sink
	metrics   *metrics.Metrics
	prims     geoprim.Primitives
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSinks adds sinks that receive every batch result.
func WithSinks(sinks ...Sink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// WithMetrics records stage outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPrimitives overrides the spatial primitives used for snapping.
func WithPrimitives(p geoprim.Primitives) Option {
	return func(o *Orchestrator) { o.prims = p }
}

// New creates an Orchestrator over snapshot. The strategy for cfg.Method is
// chosen once here.
func New(snapshot Snapshot, cfg Config, opts ...Option) (*Orchestrator, error) {
	if snapshot.Network == nil {
		return nil, eris.New("pipeline: river network is required")
	}
	if snapshot.Hierarchy == nil {
		return nil, eris.New("pipeline: basin hierarchy is required")
	}
	cfg = cfg.withDefaults()

	o := &Orchestrator{
		cfg:       cfg,
		network:   snapshot.Network,
		hierarchy: snapshot.Hierarchy,
		finder:    basin.NewLevelFinder(snapshot.Hierarchy),
		resolver:  upstream.NewResolver(cfg.Method),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.snapper = snap.New(o.prims)
	return o, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// ResolveDam runs every stage for one dam. On success the returned dam
// carries its snapped point, outlet basin and upstream set. Failures are
// returned as *model.StageError.
func (o *Orchestrator) ResolveDam(ctx context.Context, d model.Dam) (model.Dam, error) {
	log := zap.L().With(zap.String("dam_id", d.ID))

	start := time.Now()
	sp, err := o.snapper.Snap(ctx, geom.Coord{d.Lon, d.Lat}, o.network, o.cfg.SearchRadiusM, o.cfg.SampleIntervalM)
	if err != nil {
		return d, o.fail(model.StageSnap, start, err)
	}
	o.metrics.RecordStage(string(model.StageSnap), time.Since(start), "")
	o.metrics.RecordSnap(sp.DisplacementM)
	snapped := geom.Coord{sp.Lon, sp.Lat}

	start = time.Now()
	bound, err := o.finder.FindBoundingLevel(snapped)
	if err != nil {
		return d, o.fail(model.StageBoundingLevel, start, err)
	}
	o.metrics.RecordStage(string(model.StageBoundingLevel), time.Since(start), "")
	o.metrics.RecordBound(bound.Level)

	start = time.Now()
	outlet, ok := o.hierarchy.EnclosingBasin(snapped, upstream.ResolutionLevel)
	if !ok {
		err = eris.Wrapf(model.ErrNoEnclosingBasin, "pipeline: snapped point (%.6f, %.6f) at level %d",
			sp.Lon, sp.Lat, upstream.ResolutionLevel)
		return d, o.fail(model.StageOutletBasin, start, err)
	}
	o.metrics.RecordStage(string(model.StageOutletBasin), time.Since(start), "")

	start = time.Now()
	ids, err := upstream.Resolve(o.hierarchy, bound, outlet, o.resolver)
	if err != nil {
		return d, o.fail(model.StageResolve, start, err)
	}
	o.metrics.RecordStage(string(model.StageResolve), time.Since(start), "")
	o.metrics.RecordUpstream(len(ids))

	log.Debug("pipeline: dam resolved",
		zap.Int64("reach_id", sp.ReachID),
		zap.Float64("displacement_m", sp.DisplacementM),
		zap.Int("bounding_level", bound.Level),
		zap.Int64("outlet_basin_id", outlet.ID),
		zap.Int("upstream", len(ids)),
	)

	d.Snapped = &sp
	d.OutletBasinID = outlet.ID
	d.UpstreamBasinIDs = ids
	return d, nil
}

func (o *Orchestrator) fail(stage model.Stage, start time.Time, err error) error {
	o.metrics.RecordStage(string(stage), time.Since(start), model.ErrorKind(err))
	return model.NewStageError(stage, err)
}
