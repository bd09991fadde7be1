package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Alia5/ghostkey/apitypes"
	"github.com/Alia5/ghostkey/engine"
	"github.com/Alia5/ghostkey/internal/server/api"
)

// Injector is the part of the engine the inject handlers drive.
type Injector interface {
	Start(text string) error
	Cancel() bool
	Status() engine.Status
}

// InjectStart returns a handler that arms a session for the text in the payload.
// Error logging is centralized in the API server; this handler only returns errors.
func InjectStart(e Injector) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		if strings.TrimSpace(req.Payload) == "" {
			return api.ErrBadRequest("missing payload")
		}
		var in apitypes.InjectStartRequest
		if err := json.Unmarshal([]byte(req.Payload), &in); err != nil {
			return api.ErrBadRequest(fmt.Sprintf("invalid payload: %v", err))
		}
		if err := e.Start(in.Text); err != nil {
			return api.WrapError(err)
		}
		total := e.Status().Stats.Total
		logger.Info("injection session started via API", "chars", total)
		out, err := json.Marshal(apitypes.InjectStartResponse{Total: total})
		if err != nil {
			return api.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(out)
		return nil
	}
}

// InjectCancel returns a handler that cancels the live session, if any.
func InjectCancel(e Injector) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		out, err := json.Marshal(apitypes.InjectCancelResponse{Cancelled: e.Cancel()})
		if err != nil {
			return api.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(out)
		return nil
	}
}

// InjectStatus returns a handler reporting the engine state and counters.
func InjectStatus(e Injector) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		out, err := json.Marshal(StatusDTO(e.Status()))
		if err != nil {
			return api.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(out)
		return nil
	}
}

// StatusDTO converts an engine status to its wire form.
func StatusDTO(st engine.Status) apitypes.InjectStatusResponse {
	return apitypes.InjectStatusResponse{
		State:       st.State.String(),
		Tap:         st.Tap.String(),
		Cursor:      st.Stats.Cursor,
		Total:       st.Stats.Total,
		Successes:   st.Stats.Successes,
		Failures:    st.Stats.Failures,
		Credits:     st.Stats.Credits,
		Drops:       st.Stats.Drops,
		DelayMicros: st.Stats.Delay.Microseconds(),
		Pending:     st.Pending,
	}
}
