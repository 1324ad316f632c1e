// Package router delivers messages to one user or to everyone connected,
// with uniform hook and delivery-result semantics for both paths.
package router

import (
	"context"
	"errors"

	"chat-core/internal/connection"
	"chat-core/internal/hooks"
	"chat-core/internal/models"
	"chat-core/internal/queue"

	"github.com/rs/zerolog"
)

// ErrNoOpenConnection is recorded when every send attempt for a
// recipient failed.
var ErrNoOpenConnection = errors.New("no open connection accepted the send")

// Router owns the single delivery path shared by the command pipeline
// and the connection lifecycle.
type Router struct {
	registry *connection.Registry
	hooks    *hooks.Registry
	queue    queue.Queue // optional; nil disables offline queueing
	log      zerolog.Logger
}

func New(registry *connection.Registry, hookReg *hooks.Registry, q queue.Queue, log zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		hooks:    hookReg,
		queue:    q,
		log:      log,
	}
}

// SendToUser delivers msg to every open connection of userID. Pre-send
// hooks run first and may transform or drop the message; post-send hooks
// always run and observe the final result.
func (r *Router) SendToUser(ctx context.Context, msg *models.Message, userID string) models.DeliveryResult {
	hctx := hooks.NewContext(hooks.PreMessage)
	hctx.UserID = userID
	hctx.Message = msg
	hctx = r.hooks.Run(hooks.PreMessage, hctx)

	var result models.DeliveryResult
	if hctx.Drop {
		// A vetoed message is not a failure.
		result = models.DeliveryResult{Status: models.StatusDelivered, UserID: userID}
	} else {
		result = r.deliver(ctx, hctx.Message, userID)
	}

	post := hooks.NewContext(hooks.PostMessage)
	post.UserID = userID
	post.Message = hctx.Message
	post.Result = &result
	r.hooks.Run(hooks.PostMessage, post)

	return result
}

func (r *Router) deliver(ctx context.Context, msg *models.Message, userID string) models.DeliveryResult {
	conns := r.registry.Get(userID)
	if len(conns) == 0 {
		return r.handleOffline(ctx, msg, userID)
	}

	data, err := msg.Encode()
	if err != nil {
		return models.DeliveryResult{Status: models.StatusFailed, UserID: userID, Error: err.Error()}
	}

	delivered := false
	var lastErr error
	for _, conn := range conns {
		if !conn.IsOpen() {
			continue
		}
		if err := conn.Send(data); err != nil {
			lastErr = err
			r.log.Debug().
				Err(err).
				Str("user", userID).
				Str("conn", conn.ID).
				Msg("send failed on connection")
			continue
		}
		delivered = true
	}

	if delivered {
		return models.DeliveryResult{Status: models.StatusDelivered, UserID: userID}
	}
	if lastErr == nil {
		lastErr = ErrNoOpenConnection
	}
	return models.DeliveryResult{Status: models.StatusFailed, UserID: userID, Error: lastErr.Error()}
}

func (r *Router) handleOffline(ctx context.Context, msg *models.Message, userID string) models.DeliveryResult {
	if r.queue == nil {
		return models.DeliveryResult{Status: models.StatusUserOffline, UserID: userID}
	}
	if err := r.queue.Enqueue(ctx, userID, msg); err != nil {
		if !errors.Is(err, queue.ErrQueueFull) {
			r.log.Error().Err(err).Str("user", userID).Msg("offline enqueue failed")
		}
		return models.DeliveryResult{Status: models.StatusUserOffline, UserID: userID, Error: err.Error()}
	}
	return models.DeliveryResult{Status: models.StatusQueued, UserID: userID}
}

// Broadcast delivers msg to every connected user except those excluded.
// Best-effort: one recipient's failure never aborts the rest.
func (r *Router) Broadcast(ctx context.Context, msg *models.Message, exclude ...string) map[string]models.DeliveryResult {
	hctx := hooks.NewContext(hooks.PreBroadcast)
	hctx.UserID = msg.Sender
	hctx.Message = msg
	hctx = r.hooks.Run(hooks.PreBroadcast, hctx)

	excluded := make(map[string]struct{}, len(exclude))
	for _, user := range exclude {
		excluded[user] = struct{}{}
	}

	results := make(map[string]models.DeliveryResult)
	if !hctx.Drop {
		for _, user := range r.registry.Users() {
			if _, skip := excluded[user]; skip {
				continue
			}
			results[user] = r.SendToUser(ctx, hctx.Message, user)
		}
	}

	post := hooks.NewContext(hooks.PostBroadcast)
	post.UserID = msg.Sender
	post.Message = hctx.Message
	r.hooks.Run(hooks.PostBroadcast, post)

	return results
}

// BroadcastText broadcasts a plain text message from sender.
func (r *Router) BroadcastText(ctx context.Context, sender, content string, exclude ...string) map[string]models.DeliveryResult {
	return r.Broadcast(ctx, models.NewText(sender, content, ""), exclude...)
}

// NotifyUserJoined broadcasts a JOIN notification to everyone but the
// user who joined.
func (r *Router) NotifyUserJoined(ctx context.Context, user string) map[string]models.DeliveryResult {
	return r.Broadcast(ctx, models.NewJoin(user), user)
}

// NotifyUserLeft broadcasts a LEAVE notification to everyone but the
// user who left.
func (r *Router) NotifyUserLeft(ctx context.Context, user string) map[string]models.DeliveryResult {
	return r.Broadcast(ctx, models.NewLeave(user), user)
}

// SendPong answers a heartbeat on the originating connection only, never
// via the fan-out path.
func (r *Router) SendPong(conn *connection.Conn) error {
	data, err := models.NewPong(conn.UserID).Encode()
	if err != nil {
		return err
	}
	return conn.Send(data)
}
