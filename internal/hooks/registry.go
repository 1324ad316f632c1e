// Package hooks is the plugin-lifecycle registry: named phases at which
// external code may observe or annotate in-flight state.
package hooks

import (
	"fmt"
	"sort"
	"sync"

	"chat-core/internal/models"

	"github.com/rs/zerolog"
)

// Phase is a closed enumeration of lifecycle points.
type Phase int

const (
	PreConnect Phase = iota
	PostConnect
	PreAuthenticate
	PostAuthenticate
	PreMessage
	PostMessage
	PreBroadcast
	PostBroadcast
	PreDisconnect
	PostDisconnect
	PreCommand
	PostCommand
)

func (p Phase) String() string {
	switch p {
	case PreConnect:
		return "pre_connect"
	case PostConnect:
		return "post_connect"
	case PreAuthenticate:
		return "pre_authenticate"
	case PostAuthenticate:
		return "post_authenticate"
	case PreMessage:
		return "pre_message"
	case PostMessage:
		return "post_message"
	case PreBroadcast:
		return "pre_broadcast"
	case PostBroadcast:
		return "post_broadcast"
	case PreDisconnect:
		return "pre_disconnect"
	case PostDisconnect:
		return "post_disconnect"
	case PreCommand:
		return "pre_command"
	case PostCommand:
		return "post_command"
	default:
		return "unknown"
	}
}

// DefaultPriority applies when a hook is registered without one.
const DefaultPriority = 100

// Context is threaded through a phase's hook chain. Hooks may read and
// annotate it but must not assume they run exactly once.
type Context struct {
	Phase   Phase
	UserID  string
	ConnID  string
	Message *models.Message
	Result  *models.DeliveryResult
	// Drop vetoes the in-flight message when set by a PreMessage hook.
	Drop   bool
	Values map[string]string
}

// NewContext builds a context for one phase execution.
func NewContext(phase Phase) *Context {
	return &Context{Phase: phase, Values: make(map[string]string)}
}

// Func observes or mutates the context. An error (or panic) is isolated:
// logged, and the remaining hooks for the phase still run.
type Func func(ctx *Context) error

type registration struct {
	name     string
	priority int
	seq      int
	fn       Func
}

// Registry holds the ordered hook chains per phase. It is generic on
// purpose: the router, the command pipeline, and the connection manager
// all execute phases through the same registry.
type Registry struct {
	mu     sync.Mutex
	phases map[Phase][]registration
	seq    int
	log    zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		phases: make(map[Phase][]registration),
		log:    log,
	}
}

// Register adds fn under name at the given priority. Lower priorities
// run first; ties keep registration order. Registering an existing name
// replaces it.
func (r *Registry) Register(phase Phase, name string, fn Func, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.phases[phase]
	for i := range chain {
		if chain[i].name == name {
			chain[i].fn = fn
			chain[i].priority = priority
			r.sortLocked(phase, chain)
			return
		}
	}
	r.seq++
	chain = append(chain, registration{name: name, priority: priority, seq: r.seq, fn: fn})
	r.sortLocked(phase, chain)
}

func (r *Registry) sortLocked(phase Phase, chain []registration) {
	sort.SliceStable(chain, func(i, j int) bool {
		if chain[i].priority != chain[j].priority {
			return chain[i].priority < chain[j].priority
		}
		return chain[i].seq < chain[j].seq
	})
	r.phases[phase] = chain
}

// Unregister removes the named hook from a phase.
func (r *Registry) Unregister(phase Phase, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.phases[phase]
	for i := range chain {
		if chain[i].name == name {
			r.phases[phase] = append(chain[:i], chain[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns how many hooks a phase holds.
func (r *Registry) Count(phase Phase) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.phases[phase])
}

// Run executes the phase's chain in priority order, threading ctx
// through. A hook that errors or panics is logged and skipped; it never
// aborts the chain.
func (r *Registry) Run(phase Phase, ctx *Context) *Context {
	if ctx == nil {
		ctx = NewContext(phase)
	}
	ctx.Phase = phase

	r.mu.Lock()
	chain := make([]registration, len(r.phases[phase]))
	copy(chain, r.phases[phase])
	r.mu.Unlock()

	for _, reg := range chain {
		if err := r.invoke(reg, ctx); err != nil {
			r.log.Error().
				Err(err).
				Str("phase", phase.String()).
				Str("hook", reg.name).
				Msg("hook failed, continuing chain")
		}
	}
	return ctx
}

func (r *Registry) invoke(reg registration, ctx *Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook %s panicked: %v", reg.name, rec)
		}
	}()
	return reg.fn(ctx)
}
