// Package command runs inbound message content through an ordered set of
// handlers before routing.
package command

import (
	"fmt"
	"sort"
	"sync"

	"chat-core/internal/hooks"
	"chat-core/internal/models"

	"github.com/rs/zerolog"
)

// Request is the content a handler inspects.
type Request struct {
	Content string
	Sender  string
	Target  string
}

// Handler intercepts message content. Handlers are registered statically
// at startup; plugin discovery is a collaborator that produces handler
// instances, not a runtime import mechanism.
type Handler interface {
	Name() string
	CanHandle(req *Request) bool
	// Execute returns the response message, or nil to pass the request
	// to the next handler.
	Execute(req *Request) (*models.Message, error)
}

type entry struct {
	handler  Handler
	priority int
	seq      int
}

// Pipeline tries handlers ascending by priority; the first non-nil
// response short-circuits. With no response the content is wrapped as a
// plain TEXT message for the original target.
type Pipeline struct {
	mu      sync.Mutex
	entries []entry
	seq     int
	hooks   *hooks.Registry
	log     zerolog.Logger
}

func NewPipeline(hookReg *hooks.Registry, log zerolog.Logger) *Pipeline {
	return &Pipeline{hooks: hookReg, log: log}
}

// Register adds a handler at the given priority. Lower runs first.
func (p *Pipeline) Register(h Handler, priority int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	p.entries = append(p.entries, entry{handler: h, priority: priority, seq: p.seq})
	sort.SliceStable(p.entries, func(i, j int) bool {
		if p.entries[i].priority != p.entries[j].priority {
			return p.entries[i].priority < p.entries[j].priority
		}
		return p.entries[i].seq < p.entries[j].seq
	})
}

// Handlers lists registered handler names in execution order.
func (p *Pipeline) Handlers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.handler.Name())
	}
	return out
}

// Process runs content through the pipeline and always yields a message.
// A handler error or panic becomes a server-authored error reply to the
// sender; one misbehaving handler must not stop message flow.
func (p *Pipeline) Process(content, sender, target string) *models.Message {
	req := &Request{Content: content, Sender: sender, Target: target}

	if p.hooks != nil {
		ctx := hooks.NewContext(hooks.PreCommand)
		ctx.UserID = sender
		ctx.Message = models.NewText(sender, content, target)
		p.hooks.Run(hooks.PreCommand, ctx)
	}

	out := p.dispatch(req)

	if p.hooks != nil {
		ctx := hooks.NewContext(hooks.PostCommand)
		ctx.UserID = sender
		ctx.Message = out
		p.hooks.Run(hooks.PostCommand, ctx)
	}
	return out
}

func (p *Pipeline) dispatch(req *Request) *models.Message {
	p.mu.Lock()
	entries := make([]entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	for _, e := range entries {
		if !e.handler.CanHandle(req) {
			continue
		}
		resp, err := p.execute(e.handler, req)
		if err != nil {
			p.log.Error().
				Err(err).
				Str("handler", e.handler.Name()).
				Str("sender", req.Sender).
				Msg("command handler failed")
			return models.NewServerNotice(
				fmt.Sprintf("command failed: %s", e.handler.Name()), req.Sender)
		}
		if resp != nil {
			return resp
		}
	}

	return models.NewText(req.Sender, req.Content, req.Target)
}

func (p *Pipeline) execute(h Handler, req *Request) (resp *models.Message, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp = nil
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return h.Execute(req)
}
