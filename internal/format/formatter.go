package format

import (
	"fmt"
	"sort"
	"sync"

	"hookbot/internal/payload"
)

// Options carries the per-endpoint knobs a formatter may honor.
type Options struct {
	Labels       map[string]string
	ParseMode    string
	PluginConfig map[string]any
}

// Formatter converts a normalized payload into message text. Built-ins
// and user plugins implement the same interface and are selected by
// name from the Registry.
type Formatter interface {
	Format(p payload.Payload, opts Options) (string, error)
}

// NotFoundError reports a formatter name with no registration.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("formatter %q not found", e.Name)
}

// Registry maps formatter names to implementations. Registration
// happens at startup; lookups are concurrent-safe.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Formatter
}

func NewRegistry() *Registry {
	r := &Registry{m: map[string]Formatter{}}
	r.Register("plain", Plain{})
	r.Register("markdown", Markdown{})
	return r
}

func (r *Registry) Register(name string, f Formatter) {
	r.mu.Lock()
	r.m[name] = f
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	f, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return f, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// label resolves the display name for a payload key.
func label(key string, labels map[string]string) string {
	if l, ok := labels[key]; ok && l != "" {
		return l
	}
	return key
}

// sortedKeys returns payload keys in stable order with "message" first,
// so formatter output does not jitter between requests.
func sortedKeys(p payload.Payload) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == "message" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, ok := p["message"]; ok {
		keys = append([]string{"message"}, keys...)
	}
	return keys
}
