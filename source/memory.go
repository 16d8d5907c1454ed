package source

import (
	"context"
	"sort"
	"sync"

	"wsbr-console/models"
)

const subscriberBuffer = 16

// Memory is an in-process daemon stand-in. It serves both as Connector and
// StatusSource and is what tests and embedders drive directly.
type Memory struct {
	mu       sync.Mutex
	services map[string]*memoryService
}

type memoryService struct {
	active  models.ActiveState
	invalid bool
	props   models.Properties
	reads   int
	subs    map[chan string]struct{}
}

func NewMemory() *Memory {
	return &Memory{services: make(map[string]*memoryService)}
}

func (m *Memory) service(name string) *memoryService {
	svc, ok := m.services[name]
	if !ok {
		svc = &memoryService{subs: make(map[chan string]struct{})}
		m.services[name] = svc
	}
	return svc
}

// Install registers a service in the given active state.
func (m *Memory) Install(name string, active models.ActiveState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.service(name).active = active
}

// SetInvalid makes Properties fail with ErrSourceInvalid.
func (m *Memory) SetInvalid(name string, invalid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.service(name).invalid = invalid
}

// Publish replaces the property bag and notifies subscribers of every
// property present in props. RoutingGraph goes first so a full subscriber
// buffer can only drop the others.
func (m *Memory) Publish(name string, props models.Properties) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc := m.service(name)
	svc.props = props

	names := make([]string, 0, len(props))
	for prop := range props {
		if prop != models.PropRoutingGraph {
			names = append(names, prop)
		}
	}
	sort.Strings(names)
	if _, ok := props[models.PropRoutingGraph]; ok {
		names = append([]string{models.PropRoutingGraph}, names...)
	}
	for ch := range svc.subs {
		for _, prop := range names {
			notify(ch, prop)
		}
	}
}

// Store replaces the property bag without notifying anyone, like a daemon
// whose signals are not wired yet.
func (m *Memory) Store(name string, props models.Properties) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.service(name).props = props
}

// Reads returns how many times the service's properties were fetched.
func (m *Memory) Reads(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.service(name).reads
}

// Emit sends a single property notification without changing anything.
func (m *Memory) Emit(name, prop string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.service(name).subs {
		notify(ch, prop)
	}
}

// Subscribers returns the number of live subscriptions for a service.
func (m *Memory) Subscribers(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.service(name).subs)
}

func (m *Memory) Status(_ context.Context, name string) (models.ServiceStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[name]
	if !ok {
		return models.NewServiceStatus(name, false, models.ActiveUnknown), nil
	}
	return models.NewServiceStatus(name, true, svc.active), nil
}

func (m *Memory) Connect(name string) (RoutingSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[name]; !ok {
		return nil, ErrUnknownService
	}
	return &memorySource{mem: m, name: name}, nil
}

type memorySource struct {
	mem  *Memory
	name string
}

func (s *memorySource) Properties(ctx context.Context) (models.Properties, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	svc := s.mem.service(s.name)
	svc.reads++
	if svc.invalid {
		return nil, ErrSourceInvalid
	}
	if !svc.props.Ready() {
		return nil, ErrNotReady
	}
	out := make(models.Properties, len(svc.props))
	for k, v := range svc.props {
		out[k] = v
	}
	return out, nil
}

func (s *memorySource) Subscribe(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, subscriberBuffer)
	s.mem.mu.Lock()
	s.mem.service(s.name).subs[ch] = struct{}{}
	s.mem.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mem.mu.Lock()
		delete(s.mem.service(s.name).subs, ch)
		s.mem.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (s *memorySource) Close() error {
	return nil
}
