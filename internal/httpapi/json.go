package httpapi

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/imzii/Online-Chess-PPT/internal/game"
	"github.com/imzii/Online-Chess-PPT/internal/obslog"
	"github.com/imzii/Online-Chess-PPT/pkg/gamedto"
)

func readJSON(ctx *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "malformed json body")
		return false
	}
	return true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		obslog.L().Error("response_encode_failed", zap.Error(err))
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, gamedto.ErrorResponse{Error: msg})
}

// writeDomainError maps the session error taxonomy onto HTTP statuses. Store
// trouble is a per-request 503; the process stays up.
func writeDomainError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		writeError(ctx, fasthttp.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrIllegalMove):
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrNotYourTurn), errors.Is(err, game.ErrNotParticipant):
		writeError(ctx, fasthttp.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrStoreUnavailable):
		writeError(ctx, fasthttp.StatusServiceUnavailable, err.Error())
	default:
		obslog.L().Error("request_failed", zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}
