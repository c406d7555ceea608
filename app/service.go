package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/civicdispatch/api"
	"github.com/kilianp07/civicdispatch/config"
	"github.com/kilianp07/civicdispatch/core/compose"
	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/ledger"
	coremetrics "github.com/kilianp07/civicdispatch/core/metrics"
	coremon "github.com/kilianp07/civicdispatch/core/monitoring"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/neighborhood"
	"github.com/kilianp07/civicdispatch/core/registry"
	"github.com/kilianp07/civicdispatch/infra/logger"
	"github.com/kilianp07/civicdispatch/infra/metrics"
	"github.com/kilianp07/civicdispatch/infra/monitoring"
	_ "github.com/kilianp07/civicdispatch/infra/transport"
	"github.com/kilianp07/civicdispatch/internal/eventbus"
)

// ErrUnknownTarget is returned when a target id is not in the registry.
var ErrUnknownTarget = errors.New("unknown target")

// Service wires the registry, resolver, orchestrator and ledger together.
type Service struct {
	Registry     *registry.Registry
	Resolver     *neighborhood.Resolver
	Orchestrator *dispatch.Orchestrator
	Ledger       ledger.Ledger

	transport dispatch.Transport
	sink      coremetrics.MetricsSink
	bus       eventbus.EventBus
	log       logger.Logger
	locks     *issueLocks
	http      config.HTTPConfig
	promPort  string
}

// Deps are the collaborators of a Service. Nil Sink, Bus and Logger are
// replaced by no-op implementations.
type Deps struct {
	Registry  *registry.Registry
	Transport dispatch.Transport
	Ledger    ledger.Ledger
	Sink      coremetrics.MetricsSink
	Bus       eventbus.EventBus
	Logger    logger.Logger
	RadiusKm  float64
	Issuer    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	reg, err := registry.FromConfig(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	tr, err := dispatch.NewTransport(cfg.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	led, err := ledger.Open(cfg.Ledger, logger.New("ledger"))
	if err != nil {
		return nil, err
	}
	svc, err := NewWithDeps(Deps{
		Registry:  reg,
		Transport: tr,
		Ledger:    led,
		Sink:      sink,
		Bus:       eventbus.New(),
		Logger:    log,
		RadiusKm:  cfg.Dispatch.RadiusKm,
		Issuer:    cfg.Dispatch.IssuingSystem,
	})
	if err != nil {
		_ = led.Close()
		return nil, err
	}
	svc.http = cfg.HTTP
	svc.promPort = cfg.Metrics.PrometheusPort
	log.Infof("loaded %d targets, radius %.0f km, transport %s", reg.Len(), svc.Resolver.RadiusKm(), cfg.Dispatch.Transport.Type)
	return svc, nil
}

// NewWithDeps creates a Service from already built collaborators.
func NewWithDeps(d Deps) (*Service, error) {
	if d.Registry == nil {
		d.Registry = registry.Default()
	}
	if d.Ledger == nil {
		d.Ledger = ledger.NewMemory()
	}
	if d.Sink == nil {
		d.Sink = coremetrics.NopSink{}
	}
	if d.Bus == nil {
		d.Bus = eventbus.New()
	}
	if d.Logger == nil {
		d.Logger = logger.NopLogger{}
	}
	orch, err := dispatch.NewOrchestrator(d.Transport, d.Issuer, d.Logger)
	if err != nil {
		return nil, err
	}
	orch.SetMetricsSink(d.Sink)
	orch.SetEventBus(d.Bus)
	return &Service{
		Registry:     d.Registry,
		Resolver:     neighborhood.NewResolver(d.Registry, d.RadiusKm),
		Orchestrator: orch,
		Ledger:       d.Ledger,
		transport:    d.Transport,
		sink:         d.Sink,
		bus:          d.Bus,
		log:          d.Logger,
		locks:        newIssueLocks(),
	}, nil
}

// DispatchIssue submits the issue to every target near userLocation that
// covers its category and records the round. Rounds for one issue run one at
// a time. A round that attempted no target leaves the current record intact.
func (s *Service) DispatchIssue(ctx context.Context, req model.DispatchRequest, userLocation model.GeoPoint) (dispatch.RoundReport, error) {
	if err := userLocation.Validate(); err != nil {
		return dispatch.RoundReport{}, fmt.Errorf("%w: user location: %v", dispatch.ErrInvalidRequest, err)
	}
	unlock := s.locks.lock(req.IssueID)
	defer unlock()

	matches := s.Resolver.ResolveCovering(userLocation, req.Category)
	res, err := s.Orchestrator.SubmitRound(ctx, req, neighborhood.Targets(matches))
	if err != nil {
		return dispatch.RoundReport{}, err
	}
	report := dispatch.NewRoundReport(req.IssueID, s.Resolver.RadiusKm(), res)
	if res.Status == model.RoundEmpty {
		return report, nil
	}
	if err := s.Ledger.RecordRound(ctx, req.IssueID, res); err != nil {
		return report, fmt.Errorf("record round: %w", err)
	}
	return report, nil
}

// Targets lists the registered targets in registry order.
func (s *Service) Targets() []model.DispatchTarget { return s.Registry.All() }

// Target looks up one target.
func (s *Service) Target(id string) (model.DispatchTarget, bool) { return s.Registry.Lookup(id) }

// Nearby lists the targets within radiusKm of point, nearest first. A radius
// <= 0 means the configured radius.
func (s *Service) Nearby(point model.GeoPoint, radiusKm float64) []neighborhood.Match {
	if radiusKm <= 0 {
		return s.Resolver.Resolve(point)
	}
	return neighborhood.Resolve(point, radiusKm, s.Registry)
}

// Compose renders the message req would produce for the target.
func (s *Service) Compose(req model.DispatchRequest, targetID string) (compose.Message, error) {
	t, ok := s.Registry.Lookup(targetID)
	if !ok {
		return compose.Message{}, fmt.Errorf("%w: %s", ErrUnknownTarget, targetID)
	}
	return compose.Compose(req, t), nil
}

// CurrentRecord returns the outcomes of the issue's latest round.
func (s *Service) CurrentRecord(ctx context.Context, issueID string) (ledger.SubmissionRecord, error) {
	return s.Ledger.CurrentRecord(ctx, issueID)
}

// History returns the recorded rounds of an issue, oldest first.
func (s *Service) History(ctx context.Context, issueID string) ([]ledger.RoundEntry, error) {
	return s.Ledger.History(ctx, ledger.Query{IssueID: issueID})
}

// Run serves the REST API, and metrics when a Prometheus port is configured,
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	collector := metrics.StartEventCollector(ctx, s.bus, s.sink, s.log)
	if s.promPort != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	srv := &http.Server{
		Addr:              s.http.Addr,
		Handler:           api.NewRouter(s, s.http.Token, s.log),
		ReadHeaderTimeout: time.Duration(s.http.ReadTimeoutSeconds) * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.http.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-collector
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	defer coremon.Flush(2 * time.Second)
	s.bus.Close()
	var errs []error
	if c, ok := s.transport.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.Ledger.Close())
	return errors.Join(errs...)
}
