package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/WarDekar/BB-Browser/internal/engine"
	"github.com/WarDekar/BB-Browser/internal/session"
)

// Registry is the single source of truth for named instances. Names are
// the uniqueness key and are never auto-generated.
type Registry struct {
	eng   engine.Engine
	store *session.Store
	hub   *Hub

	mu        sync.RWMutex
	instances map[string]*Instance
	pending   map[string]struct{}
}

func NewRegistry(eng engine.Engine, store *session.Store) *Registry {
	return &Registry{
		eng:       eng,
		store:     store,
		hub:       NewHub(),
		instances: make(map[string]*Instance),
		pending:   make(map[string]struct{}),
	}
}

// Events exposes the registry's lifecycle event hub.
func (r *Registry) Events() *Hub { return r.hub }

// Create launches a new named instance. The name is reserved before the
// launch and the instance becomes visible only after a successful launch,
// so a concurrent Get never observes a half-launched instance.
func (r *Registry) Create(ctx context.Context, cfg InstanceConfig) (*Instance, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, NewError(CodeValidation, "instance name is required", nil)
	}
	cfg.Name = name

	r.mu.Lock()
	if _, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return nil, NewError(CodeDuplicateName, fmt.Sprintf("instance %q already exists", name), nil)
	}
	if _, ok := r.pending[name]; ok {
		r.mu.Unlock()
		return nil, NewError(CodeDuplicateName, fmt.Sprintf("instance %q is being created", name), nil)
	}
	r.pending[name] = struct{}{}
	r.mu.Unlock()

	// Event wiring happens inside the instance before the engine can emit
	// anything, so no page event is lost during the launch race.
	inst := NewInstance(cfg, r.eng, r.hub)
	err := inst.Launch(ctx)

	r.mu.Lock()
	delete(r.pending, name)
	if err == nil {
		r.instances[name] = inst
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	slog.Info("instance created", "name", name, "engine", r.eng.Name(), "headless", cfg.Headless)
	return inst, nil
}

// Get looks an instance up by name.
func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

func (r *Registry) getOrFail(name string) (*Instance, error) {
	if inst, ok := r.Get(name); ok {
		return inst, nil
	}
	return nil, NewError(CodeInstanceNotFound, fmt.Sprintf("instance %q not found", name), nil)
}

// List returns snapshots of every registered instance, ordered by name.
func (r *Registry) List() []InstanceInfo {
	r.mu.RLock()
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.mu.RUnlock()

	infos := make([]InstanceInfo, 0, len(insts))
	for _, inst := range insts {
		infos = append(infos, inst.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Close tears one instance down and removes it. Removal happens only after
// the close completes so a concurrent Get never sees a half-closed
// instance under the same name.
func (r *Registry) Close(ctx context.Context, name string) error {
	inst, err := r.getOrFail(name)
	if err != nil {
		return err
	}
	closeErr := inst.Close(ctx)

	r.mu.Lock()
	delete(r.instances, name)
	r.mu.Unlock()
	return closeErr
}

// CloseAll closes every instance concurrently and waits for all of them,
// so total shutdown latency is bounded by the slowest instance. One
// failing close never blocks or skips the others; failures are aggregated.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	insts := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.instances = make(map[string]*Instance)
	r.mu.Unlock()

	errs := make([]error, len(insts))
	var wg sync.WaitGroup
	for i, inst := range insts {
		wg.Add(1)
		go func(i int, inst *Instance) {
			defer wg.Done()
			if err := inst.Close(ctx); err != nil {
				errs[i] = fmt.Errorf("close %q: %w", inst.Name(), err)
			}
		}(i, inst)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("all instances closed", "count", len(insts))
	return nil
}

// SaveSession extracts the named instance's state and persists it under
// sessionName. An existing record keeps its creation timestamp.
func (r *Registry) SaveSession(ctx context.Context, instanceName, sessionName string) (*session.Record, error) {
	if strings.TrimSpace(sessionName) == "" {
		return nil, NewError(CodeValidation, "session name is required", nil)
	}
	inst, err := r.getOrFail(instanceName)
	if err != nil {
		return nil, err
	}

	rec, err := inst.ExtractSessionState(ctx)
	if err != nil {
		return nil, err
	}
	rec.Name = sessionName

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if prev, err := r.store.Load(sessionName); err == nil && prev != nil && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}

	if err := r.store.Save(rec); err != nil {
		return nil, err
	}
	r.hub.Publish(Event{Type: EventSessionSaved, Instance: instanceName, Session: sessionName})
	slog.Info("session saved", "instance", instanceName, "session", sessionName, "cookies", len(rec.Cookies))
	return rec, nil
}

// LoadSession injects a stored session into the named instance. A missing
// session is a SESSION_NOT_FOUND failure.
func (r *Registry) LoadSession(ctx context.Context, instanceName, sessionName string) error {
	inst, err := r.getOrFail(instanceName)
	if err != nil {
		return err
	}
	rec, err := r.store.Load(sessionName)
	if err != nil {
		return err
	}
	if rec == nil {
		return NewError(CodeSessionNotFound, fmt.Sprintf("session %q not found", sessionName), nil)
	}
	if err := inst.InjectSessionState(ctx, rec); err != nil {
		return err
	}
	r.hub.Publish(Event{Type: EventSessionLoaded, Instance: instanceName, Session: sessionName})
	slog.Info("session loaded", "instance", instanceName, "session", sessionName, "cookies", len(rec.Cookies))
	return nil
}

// CreateWithSession creates an instance and restores the named session
// into it. A missing session is deliberately silent: the instance still
// starts, fresh. This is bootstrap behavior, not an error path.
func (r *Registry) CreateWithSession(ctx context.Context, cfg InstanceConfig, sessionName string) (*Instance, error) {
	inst, err := r.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := r.LoadSession(ctx, cfg.Name, sessionName); err != nil {
		var coded *CodedError
		if errors.As(err, &coded) && coded.Code == CodeSessionNotFound {
			slog.Info("no saved session, starting fresh", "instance", cfg.Name, "session", sessionName)
			return inst, nil
		}
		return nil, err
	}
	return inst, nil
}
