// Package httpapi exposes the REST surface: game creation and lookups.
// Everything stateful lives in the lobby and the repository; handlers
// stay thin.
package httpapi

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/switchess/server/internal/lobby"
	"github.com/switchess/server/internal/store"
)

// Server routes /v1/games requests.
type Server struct {
	log   *zap.Logger
	lobby *lobby.Lobby
	repo  store.Repository
}

func NewServer(log *zap.Logger, lb *lobby.Lobby, repo store.Repository) *Server {
	return &Server{log: log.Named("http"), lobby: lb, repo: repo}
}

// Handler is the fasthttp entry point.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/v1/games" && method == fasthttp.MethodPost:
		s.createGame(ctx)
	case path == "/v1/games" && method == fasthttp.MethodGet:
		s.getGames(ctx)
	case strings.HasPrefix(path, "/v1/games/") && method == fasthttp.MethodGet:
		s.getActiveGame(ctx, strings.TrimPrefix(path, "/v1/games/"))
	case path == "/healthz" && method == fasthttp.MethodGet:
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

type createRequest struct {
	UserID       int64  `json:"userId"`
	UserName     string `json:"userName"`
	Side         string `json:"side"`
	IsAIGame     bool   `json:"isAIGame"`
	Unlisted     bool   `json:"unlisted"`
	SwitchType   string `json:"switchType"`
	SwitchConfig struct {
		Points   []int `json:"points"`
		Interval int   `json:"interval"` // seconds
	} `json:"switchConfig"`
}

func (s *Server) createGame(ctx *fasthttp.RequestCtx) {
	var req createRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	if req.UserID == 0 || strings.TrimSpace(req.UserName) == "" {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}

	params := lobby.CreateParams{
		HostID:       req.UserID,
		HostName:     req.UserName,
		Side:         req.Side,
		VsAI:         req.IsAIGame,
		Unlisted:     req.Unlisted,
		SwitchType:   lobby.SwitchType(req.SwitchType),
		SwitchPoints: req.SwitchConfig.Points,
		Interval:     time.Duration(req.SwitchConfig.Interval) * time.Second,
	}

	cctx, cancel := context.WithTimeout(ctx, 40*time.Second)
	defer cancel()
	view, err := s.lobby.Create(cctx, params)
	if err != nil {
		s.log.Error("create game failed", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, map[string]string{"code": view.Code})
}

// getGames lists active public games, or queries finished games when
// ?id= (game code) or ?userid= is present.
func (s *Server) getGames(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	id := string(args.Peek("id"))
	userID := string(args.Peek("userid"))

	if id == "" && userID == "" {
		writeJSON(ctx, fasthttp.StatusOK, s.lobby.ListPublic())
		return
	}

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if id != "" {
		rec, err := s.repo.GetByCode(rctx, strings.ToUpper(id))
		if err != nil {
			s.log.Error("game lookup failed", zap.String("id", id), zap.Error(err))
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		if rec == nil {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, rec)
		return
	}

	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	recs, err := s.repo.ListByUser(rctx, uid, 20)
	if err != nil {
		s.log.Error("user games lookup failed", zap.Int64("userid", uid), zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	if len(recs) == 0 {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, recs)
}

func (s *Server) getActiveGame(ctx *fasthttp.RequestCtx, code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	view := s.lobby.View(code)
	if view == nil {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, view)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}
