package registry

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/keepwarm/internal/domain"
)

// Registry is the canonical in-memory set of targets. It is safe for
// concurrent use; callers outside the scheduler should treat SetState as
// off limits.
type Registry struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]*domain.Target
	order   []domain.TargetID
}

func New() *Registry {
	return &Registry{
		targets: make(map[domain.TargetID]*domain.Target),
	}
}

// Add validates spec and stores a new target in state Stopped.
func (r *Registry) Add(spec domain.TargetSpec) (domain.Target, error) {
	if err := spec.Validate(); err != nil {
		return domain.Target{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if spec.Method == "" {
		spec.Method = http.MethodGet
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.targets {
		if t.URL == spec.URL {
			return domain.Target{}, fmt.Errorf("%w: %s", domain.ErrConflict, spec.URL)
		}
	}
	t := &domain.Target{
		ID:            domain.TargetID(uuid.NewString()),
		URL:           spec.URL,
		Method:        spec.Method,
		MinIntervalMS: spec.MinIntervalMS,
		MaxIntervalMS: spec.MaxIntervalMS,
		TimeoutMS:     spec.TimeoutMS,
		State:         domain.StateStopped,
		CreatedAt:     time.Now().UTC(),
	}
	r.targets[t.ID] = t
	r.order = append(r.order, t.ID)
	return *t, nil
}

func (r *Registry) Remove(id domain.TargetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, domain.ErrNotFound)
	}
	delete(r.targets, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Get(id domain.TargetID) (domain.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[id]
	if !ok {
		return domain.Target{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return *t, nil
}

// List returns copies of all targets in insertion order.
func (r *Registry) List() []domain.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Target, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.targets[id])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

// SetState is called by the scheduler only, while it holds its own lock.
func (r *Registry) SetState(id domain.TargetID, s domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[id]
	if !ok {
		return fmt.Errorf("set state %s: %w", id, domain.ErrNotFound)
	}
	t.State = s
	return nil
}
