package task

import (
	"fmt"
	"sync"
)

// Factory rebuilds a Task from a message taken off the broker.
type Factory func(msg Message) (Task, error)

// Registry maps task types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds taskType to f, replacing any earlier binding.
func (r *Registry) Register(taskType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = f
}

// Build returns the Task for msg, or ErrUnknownTaskType.
func (r *Registry) Build(msg Message) (Task, error) {
	r.mu.RLock()
	f, ok := r.factories[msg.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, msg.Type)
	}
	return f(msg)
}
