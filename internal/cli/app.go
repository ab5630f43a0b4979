package cli

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"showroom/internal/catalog"
	"showroom/internal/changelog"
	"showroom/internal/config"
	"showroom/internal/confirm"
	"showroom/internal/logging"
	"showroom/internal/manifest"
	"showroom/internal/metrics"
	"showroom/internal/selection"
	"showroom/internal/snapshot"
	"showroom/internal/state"
)

// App wires the configured components together.
type App struct {
	Cfg     *config.Config
	Log     *zap.Logger
	Metrics *metrics.Registry

	Backend state.Backend
	Loader  catalog.Loader
	// Browse feeds the store; confirmations use their own fetcher so a
	// preview never supersedes a browse fetch.
	Browse  *catalog.Fetcher
	Store   *selection.Store
	Confirm *confirm.Service

	closers []io.Closer
}

// NewApp builds every component from cfg. Callers must Close the app.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: log, Metrics: metrics.NewRegistry()}

	backend, err := a.openBackend()
	if err != nil {
		return nil, err
	}
	a.Backend = backend

	a.Loader, err = newLoader(cfg.Catalog)
	if err != nil {
		a.Close()
		return nil, err
	}
	clog, err := a.newChangelogWriter()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Browse = catalog.NewFetcher(a.Loader)
	a.Store = selection.Open(a.Backend,
		selection.WithLogger(log.Named("selection")),
		selection.WithMetrics(a.Metrics),
		selection.WithChangelog(clog),
		selection.WithSequence(a.Browse),
	)
	a.Confirm = confirm.NewService(a.Store, catalog.NewFetcher(a.Loader), log.Named("confirm"), a.Metrics)
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Log.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.Log.Sync()
}

func (a *App) openBackend() (state.Backend, error) {
	sc := a.Cfg.State
	switch strings.ToLower(sc.Backend) {
	case "memory":
		return state.NewInMemoryBackend(), nil
	case "file":
		return state.NewFileBackend(sc.Dir)
	case "pebble", "":
		pb, err := state.NewPebbleBackend(sc.Dir)
		if err != nil {
			return nil, fmt.Errorf("init pebble: %w", err)
		}
		a.closers = append(a.closers, pb)
		return pb, nil
	case "badger":
		bb, err := state.NewBadgerBackend(sc.Dir)
		if err != nil {
			return nil, fmt.Errorf("init badger: %w", err)
		}
		a.closers = append(a.closers, bb)
		return bb, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q: must be memory|file|pebble|badger", sc.Backend)
	}
}

func newLoader(cc config.CatalogConfig) (catalog.Loader, error) {
	switch strings.ToLower(cc.Source) {
	case "file", "":
		return catalog.NewFileLoader(cc.Path), nil
	case "kafka":
		return catalog.NewKafkaLoader(cc.Kafka.Bootstrap, cc.Kafka.Topic, cc.Kafka.Key), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q: must be file|kafka", cc.Source)
	}
}

// newChangelogWriter builds the sink named by changelog.sink.
func (a *App) newChangelogWriter() (changelog.Writer, error) {
	cc := a.Cfg.Changelog
	sink := strings.ToLower(cc.Sink)
	var writers []changelog.Writer
	if sink == "file" || sink == "both" {
		fw, err := changelog.NewFileWriter(cc.Dir, cc.File)
		if err != nil {
			return nil, fmt.Errorf("init changelog file: %w", err)
		}
		writers = append(writers, fw)
	}
	if sink == "kafka" || sink == "both" {
		kw := changelog.NewKafkaWriter(cc.Bootstrap, cc.Topic)
		a.closers = append(a.closers, kw)
		writers = append(writers, kw)
	}
	switch {
	case sink == "none" || sink == "":
		return changelog.Discard, nil
	case len(writers) == 0:
		return nil, fmt.Errorf("unknown changelog sink %q: must be none|file|kafka|both", cc.Sink)
	case len(writers) == 1:
		return writers[0], nil
	default:
		return changelog.NewMultiWriter(writers...), nil
	}
}

// ChangelogSource returns the replay source for source ("file" or "kafka").
func (a *App) ChangelogSource(source string) (changelog.Source, error) {
	cc := a.Cfg.Changelog
	switch strings.ToLower(source) {
	case "file", "":
		return changelog.NewFileSource(cc.ChangelogPath()), nil
	case "kafka":
		return changelog.NewKafkaSource(catalog.SplitBrokers(cc.Bootstrap), cc.Topic), nil
	default:
		return nil, fmt.Errorf("unknown changelog source %q: must be file|kafka", source)
	}
}

func (a *App) Snapshotter() *snapshot.FilesystemSnapshotter {
	return snapshot.NewFilesystemSnapshotter(a.Cfg.Snapshot.Dir)
}

// ManifestPublisher publishes to the manifest directory and, when a manifest
// topic is configured, to Kafka as well.
func (a *App) ManifestPublisher() manifest.Publisher {
	sc := a.Cfg.Snapshot
	fs := manifest.NewFilesystemManifest(sc.ManifestDir)
	if sc.ManifestTopic == "" {
		return fs
	}
	return manifest.MultiPublisher(fs, manifest.NewKafkaManifest(a.Cfg.Changelog.Bootstrap, sc.ManifestTopic, manifest.DefaultKey))
}

// ManifestReader reads from source ("file" or "kafka").
func (a *App) ManifestReader(source string) (manifest.Reader, error) {
	sc := a.Cfg.Snapshot
	switch strings.ToLower(source) {
	case "file", "":
		return manifest.NewFilesystemManifest(sc.ManifestDir), nil
	case "kafka":
		if sc.ManifestTopic == "" {
			return nil, fmt.Errorf("manifest source kafka needs snapshot.manifest_topic")
		}
		return manifest.NewKafkaReader(a.Cfg.Changelog.Bootstrap, sc.ManifestTopic, manifest.DefaultKey), nil
	default:
		return nil, fmt.Errorf("unknown manifest source %q: must be file|kafka", source)
	}
}
