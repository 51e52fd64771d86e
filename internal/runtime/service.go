// Package runtime wires the engine supervisor together: transport,
// exchange registry, telemetry streams, catalog, and the override
// composition pipeline.
package runtime

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stelliberty/enginectl/internal/runtime/catalog"
	"github.com/stelliberty/enginectl/internal/runtime/compose"
	configpkg "github.com/stelliberty/enginectl/internal/runtime/config"
	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/internal/runtime/exchange"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
	"github.com/stelliberty/enginectl/internal/runtime/telemetry"
	transportpkg "github.com/stelliberty/enginectl/transport"
)

// ServiceDependencies holds the collaborators the Service needs beyond
// its config. Paths is required; the rest have working defaults.
type ServiceDependencies struct {
	// Paths decides where the catalog and content files live. The
	// embedding application owns directory layout.
	Paths catalog.PathResolver

	// TransportBuilder overrides the registry lookup, mainly for tests.
	TransportBuilder transportpkg.Builder

	// Registerer receives the exchange collectors when metrics are
	// enabled. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// RuntimeParams configure the generated global override. Nil means
	// compose.DefaultRuntimeParams.
	RuntimeParams *compose.RuntimeParams
}

// Service is the engine supervisor facade: engine lifecycle, subscription
// downloads, override composition, and telemetry.
type Service struct {
	Conf   *configpkg.Config
	Logger logging.ServiceLogger

	transport transportpkg.Transport
	registry  *exchange.Registry
	client    *exchange.Client
	store     *catalog.Store
	pipeline  *compose.Pipeline
	params    compose.RuntimeParams

	logStream     *telemetry.Stream
	trafficStream *telemetry.Stream

	engine engineState
}

// NewService builds the supervisor. It opens the catalog and connects the
// transport but does not consume events until Run is called.
func NewService(ctx context.Context, conf *configpkg.Config, log logging.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, runtimeerrors.ErrConfigRequired
	}
	if log == nil {
		return nil, runtimeerrors.ErrLoggerRequired
	}
	if deps.Paths == nil {
		return nil, runtimeerrors.ErrPathsRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, runtimeerrors.NewConfigValidationError(err)
	}

	log.Info("creating engine supervisor", logging.LogFields{
		"transport": conf.Transport,
		"config":    conf,
	})

	var tr transportpkg.Transport
	var err error
	if deps.TransportBuilder != nil {
		tr, err = deps.TransportBuilder(ctx, conf, logging.NewWatermillAdapter(log))
	} else {
		tr, err = transportpkg.Build(ctx, conf, logging.NewWatermillAdapter(log))
	}
	if err != nil {
		return nil, err
	}

	store, err := catalog.Open(deps.Paths, log)
	if err != nil {
		tr.Close()
		return nil, err
	}

	var metrics *exchange.Metrics
	if conf.MetricsEnabled {
		reg := deps.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		metrics = exchange.NewMetrics(reg)
	}

	params := compose.DefaultRuntimeParams()
	if deps.RuntimeParams != nil {
		params = *deps.RuntimeParams
	}

	s := &Service{
		Conf:      conf,
		Logger:    log,
		transport: tr,
		store:     store,
		params:    params,
	}
	s.registry = exchange.NewRegistry(log, metrics)
	s.client = exchange.NewClient(s.registry, tr.Publisher, conf.ExchangeTimeout)
	s.pipeline = compose.NewPipeline(s.client, store, log)
	s.logStream = telemetry.NewStream(telemetry.LogFeed, s.client, tr.Subscriber, store.LogLevel, log)
	s.trafficStream = telemetry.NewStream(telemetry.TrafficFeed, s.client, tr.Subscriber, nil, log)

	return s, nil
}

// Run consumes the engine's event stream and resolves exchanges until ctx
// is cancelled. It must be running for any exchange-backed operation to
// complete.
func (s *Service) Run(ctx context.Context) error {
	return s.registry.Run(ctx, s.transport.Subscriber)
}

// Close stops telemetry and releases the transport.
func (s *Service) Close() error {
	if err := s.StopTelemetry(); err != nil {
		s.Logger.Error("telemetry stop during close failed", err, nil)
	}
	return s.transport.Close()
}

// Catalog exposes the subscription/override store.
func (s *Service) Catalog() *catalog.Store { return s.store }

// ApplyOverrides composes the runtime document for a subscription's base
// content: generated global override first, then the subscription's
// ordered overrides as one engine-side batch. The result is derived and
// ephemeral; it is never written back into the stored source document.
func (s *Service) ApplyOverrides(ctx context.Context, base string, sub catalog.Subscription) (string, error) {
	globalDoc, err := s.params.Document()
	if err != nil {
		s.Logger.Error("runtime override generation failed, composing without it", err, nil)
		globalDoc = ""
	}
	global := compose.GlobalOverride{Enabled: globalDoc != "", Content: globalDoc}
	return s.pipeline.Compose(ctx, base, global, sub.OverrideIDs), nil
}

// StartTelemetry activates both feeds. The log feed stays idle when the
// configured level is silent.
func (s *Service) StartTelemetry(ctx context.Context) error {
	if err := s.trafficStream.Start(ctx); err != nil {
		return err
	}
	return s.logStream.Start(ctx)
}

// StopTelemetry deactivates both feeds.
func (s *Service) StopTelemetry() error {
	if err := s.logStream.Stop(); err != nil {
		return err
	}
	return s.trafficStream.Stop()
}

// UpdateLogLevel persists the new severity and applies it to the log
// stream: hot update between non-silent levels, activation or teardown
// across the silent boundary.
func (s *Service) UpdateLogLevel(ctx context.Context, level telemetry.Level) error {
	if err := s.store.SetLogLevel(level); err != nil {
		return err
	}
	return s.logStream.UpdateLevel(ctx, level)
}

// TrafficSamples is the long-lived traffic broadcast. It survives
// telemetry stops so running averages keep their subscription.
func (s *Service) TrafficSamples() <-chan any { return s.trafficStream.Samples() }

// LogSamples is the engine log broadcast for the live session; nil while
// the log stream is idle.
func (s *Service) LogSamples() <-chan any { return s.logStream.Samples() }
