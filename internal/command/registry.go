package command

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Prefix marks command tokens in message text.
const Prefix = "/"

// Registry maps command names to handlers. Names are case-sensitive and
// registered without the leading prefix; several aliases may share one
// handler. Duplicate registration is last-wins by policy.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds the handler to every given alias.
func (r *Registry) Register(h Handler, names ...string) {
	if h == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		name = strings.TrimPrefix(strings.TrimSpace(name), Prefix)
		if name == "" {
			continue
		}
		r.handlers[name] = h
	}
}

// Resolve returns the handler registered under name.
func (r *Registry) Resolve(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered command names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Match finds the registered command the text addresses. The most specific
// (longest) name wins, and the matched token must end at end-of-string or a
// whitespace boundary, so "/showalley" never matches "show". The returned
// payload is the trimmed remainder of the text.
func (r *Registry) Match(text string) (name, payload string, ok bool) {
	if !strings.HasPrefix(text, Prefix) {
		return "", "", false
	}

	rest := text[len(Prefix):]

	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	for candidate := range r.handlers {
		if len(candidate) <= len(best) {
			continue
		}
		if !strings.HasPrefix(rest, candidate) {
			continue
		}
		if len(rest) > len(candidate) && !unicode.IsSpace(rune(rest[len(candidate)])) {
			continue
		}
		best = candidate
	}

	if best == "" {
		return "", "", false
	}

	return best, strings.TrimSpace(rest[len(best):]), true
}
