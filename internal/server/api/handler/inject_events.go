package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/Alia5/ghostkey/apitypes"
	"github.com/Alia5/ghostkey/engine"
	"github.com/Alia5/ghostkey/internal/server/api"
)

// InjectEvents returns a stream handler writing one JSON line per session
// event until the client disconnects or the server shuts down.
func InjectEvents(hub *engine.Hub) api.StreamHandlerFunc {
	return func(conn net.Conn, req *api.Request, logger *slog.Logger) error {
		events, unsubscribe := hub.Subscribe(64)
		defer unsubscribe()

		gone := make(chan struct{})
		go func() {
			_, _ = io.Copy(io.Discard, conn)
			close(gone)
		}()

		enc := json.NewEncoder(conn)
		for {
			select {
			case <-req.Ctx.Done():
				return nil
			case <-gone:
				logger.Debug("event stream client disconnected")
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := enc.Encode(EventDTO(ev)); err != nil {
					return err
				}
			}
		}
	}
}

// EventDTO converts a hub event to its wire form.
func EventDTO(ev engine.Event) apitypes.InjectEvent {
	out := apitypes.InjectEvent{
		Type:    string(ev.Type),
		Current: ev.Current,
		Total:   ev.Total,
		Kind:    string(ev.Kind),
		Error:   ev.Err,
		Time:    ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Stats != nil {
		s, f := ev.Stats.Successes, ev.Stats.Failures
		out.Successes = &s
		out.Failures = &f
	}
	return out
}
