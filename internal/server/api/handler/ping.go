package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Alia5/ghostkey/apitypes"
	"github.com/Alia5/ghostkey/internal/server/api"
	"github.com/Alia5/ghostkey/internal/version"
)

// Ping returns a handler reporting the server identity, version and platform backend.
func Ping(platformName string) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		out, err := json.Marshal(apitypes.PingResponse{
			Server:   "ghostkey",
			Version:  version.Get(),
			Platform: platformName,
		})
		if err != nil {
			return api.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(out)
		return nil
	}
}
