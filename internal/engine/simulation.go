// Simulation ties together the migration systems and runs them each tick.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/migration-sim/internal/config"
	"github.com/talgya/migration-sim/internal/entropy"
	"github.com/talgya/migration-sim/internal/events"
	"github.com/talgya/migration-sim/internal/flows"
	"github.com/talgya/migration-sim/internal/integration"
	"github.com/talgya/migration-sim/internal/policy"
	"github.com/talgya/migration-sim/internal/store"
)

// Simulation holds the complete migration state and wires systems together.
// Public methods are serialized; one Advance completes before the next
// operation starts.
type Simulation struct {
	mu sync.Mutex

	cfg    *config.Config
	store  store.Store
	events *events.Log
	rng    entropy.Source
	ids    io.Reader
	logger *slog.Logger

	start time.Time // clock at tick 0
	now   time.Time // simulation clock
	tick  uint64    // most recent tick processed

	steps    []step
	observer func(tick uint64, step string)
}

// Option customizes a Simulation at construction.
type Option func(*Simulation)

// WithSource sets the random source every stochastic update draws from.
func WithSource(rng entropy.Source) Option {
	return func(s *Simulation) { s.rng = rng }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithStore sets the entity store. The default is an empty store.Memory.
func WithStore(st store.Store) Option {
	return func(s *Simulation) { s.store = st }
}

// WithIDReader sets the byte stream entity IDs are generated from.
func WithIDReader(r io.Reader) Option {
	return func(s *Simulation) { s.ids = r }
}

// WithStepObserver registers fn to be called before each phase of Advance.
func WithStepObserver(fn func(tick uint64, step string)) Option {
	return func(s *Simulation) { s.observer = fn }
}

// New creates a Simulation from cfg. A nil cfg uses config.Default(). When
// cfg.SeedDefaultPolicies is set the world starts with policy.Defaults.
func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	s, err := newSimulation(cfg, 0, opts)
	if err != nil {
		return nil, err
	}
	if s.cfg.SeedDefaultPolicies {
		for _, p := range policy.Defaults(s.start) {
			p.CreatedAt = s.start
			p.LastUpdated = s.start
			s.store.AddPolicy(&p)
		}
	}
	return s, nil
}

// newSimulation builds an empty world. A resumed world (tick > 0) derives
// its default random streams from the seed and the tick so it does not
// replay the draws or IDs of the run it was saved from.
func newSimulation(cfg *config.Config, tick uint64, opts []Option) (*Simulation, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	c := *cfg
	if c.StartTime.IsZero() {
		c.StartTime = config.DefaultStartTime
	}

	s := &Simulation{
		cfg:    &c,
		events: events.NewLog(events.DefaultCapacity),
		start:  c.StartTime,
		now:    c.StartTime,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = store.NewMemory()
	}
	seed := c.Seed
	if seed != 0 && tick > 0 {
		seed ^= int64(tick * 0x9e3779b97f4a7c15)
		if seed == 0 {
			seed = 1
		}
	}
	if s.rng == nil {
		s.rng = entropy.New(seed)
	}
	if s.ids == nil {
		s.ids = entropy.IDReader(seed)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.steps = s.defaultSteps()
	return s, nil
}

// newID returns prefix_<uuid>.
func (s *Simulation) newID(prefix string) string {
	id, err := uuid.NewRandomFromReader(s.ids)
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + id.String()
}

// Config returns a copy of the configuration the simulation runs with.
func (s *Simulation) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cfg
}

// Now returns the simulation clock.
func (s *Simulation) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Tick returns the most recently processed tick number.
func (s *Simulation) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Flows returns copies of every flow in creation order.
func (s *Simulation) Flows() []flows.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.store.Flows()
	out := make([]flows.Flow, 0, len(all))
	for _, f := range all {
		out = append(out, f.Clone())
	}
	return out
}

// CityFlows returns copies of the flows that start or end in city.
func (s *Simulation) CityFlows(city string) []flows.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]flows.Flow, 0)
	for _, f := range s.store.Flows() {
		if f.Touches(city) {
			out = append(out, f.Clone())
		}
	}
	return out
}

// Flow returns a copy of the flow with the given id.
func (s *Simulation) Flow(id string) (flows.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.store.Flow(id)
	if !ok {
		return flows.Flow{}, fmt.Errorf("flow %s: %w", id, ErrFlowNotFound)
	}
	return f.Clone(), nil
}

// Policies returns copies of every policy in creation order.
func (s *Simulation) Policies() []policy.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.store.Policies()
	out := make([]policy.Policy, 0, len(all))
	for _, p := range all {
		out = append(out, p.Clone())
	}
	return out
}

// Policy returns a copy of the policy with the given id.
func (s *Simulation) Policy(id string) (policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.store.Policy(id)
	if !ok {
		return policy.Policy{}, fmt.Errorf("policy %s: %w", id, ErrPolicyNotFound)
	}
	return p.Clone(), nil
}

// Outcomes returns copies of every integration outcome.
func (s *Simulation) Outcomes() []integration.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.store.Outcomes()
	out := make([]integration.Outcome, 0, len(all))
	for _, o := range all {
		out = append(out, o.Clone())
	}
	return out
}

// CityOutcomes returns copies of the outcomes recorded in city.
func (s *Simulation) CityOutcomes(city string) []integration.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]integration.Outcome, 0)
	for _, o := range s.store.Outcomes() {
		if o.CityID == city {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Outcome returns a copy of the outcome with the given id.
func (s *Simulation) Outcome(id string) (integration.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.store.Outcome(id)
	if !ok {
		return integration.Outcome{}, fmt.Errorf("outcome %s: %w", id, ErrOutcomeNotFound)
	}
	return o.Clone(), nil
}

// OutcomeForFlow returns a copy of the outcome paired with flowID.
func (s *Simulation) OutcomeForFlow(flowID string) (integration.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.store.OutcomeForFlow(flowID)
	if !ok {
		return integration.Outcome{}, fmt.Errorf("outcome for flow %s: %w", flowID, ErrOutcomeNotFound)
	}
	return o.Clone(), nil
}

// RecentEvents returns up to n events, newest first. n <= 0 returns all.
func (s *Simulation) RecentEvents(n int) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Recent(n)
}

// Events returns every retained event, oldest first.
func (s *Simulation) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.All()
}

// logEvent stamps e and appends it to the ring log.
func (s *Simulation) logEvent(e events.Event) {
	e.ID = s.newID("event")
	e.Tick = s.tick
	e.Timestamp = s.now
	e.ReportedBy = "system"
	if e.AffectedCities == nil {
		e.AffectedCities = []string{}
	}
	if e.AffectedFlows == nil {
		e.AffectedFlows = []string{}
	}
	s.events.Append(e)
}

// SimTime formats a simulation clock value for logs and reports.
func SimTime(t time.Time) string {
	return t.Format("January 2006")
}
