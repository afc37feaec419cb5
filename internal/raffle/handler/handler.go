package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"vrfraffle/internal/ledger"
	"vrfraffle/internal/oracle/auth"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/service"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/httputil"
	"vrfraffle/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the raffle surface exposed over HTTP.
type Service interface {
	Enter(ctx context.Context, player common.Address, payment *big.Int) (*models.Raffle, error)
	Snapshot(ctx context.Context) (*models.Raffle, error)
	Players(ctx context.Context) ([]common.Address, error)
	Player(ctx context.Context, index int) (common.Address, error)
	RecentWinner(ctx context.Context) (common.Address, error)
	CheckUpkeep(ctx context.Context) (models.UpkeepResult, error)
	PerformUpkeep(ctx context.Context) (domain.RequestID, error)
	Pending(ctx context.Context) ([]models.PendingRequest, error)
	Notifications(ctx context.Context, limit int) ([]models.Notification, error)
	Fulfill(ctx context.Context, caller common.Address, requestID domain.RequestID, words []*big.Int) (*service.FulfillResult, error)
	Account(ctx context.Context, addr common.Address) (ledger.Account, error)
	SetPayable(ctx context.Context, addr common.Address, payable bool) error
}

// Handler wires raffle endpoints to the raffle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the public raffle and account read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Route("/raffle", func(r chi.Router) {
		r.Get("/", h.HandleSnapshot)
		r.Post("/entries", h.HandleEnter)
		r.Get("/players", h.HandlePlayers)
		r.Get("/players/{index}", h.HandlePlayer)
		r.Get("/winner", h.HandleRecentWinner)
		r.Get("/upkeep", h.HandleCheckUpkeep)
		r.Post("/upkeep", h.HandlePerformUpkeep)
		r.Get("/pending", h.HandlePending)
		r.Get("/events", h.HandleEvents)
	})
	r.Get("/accounts/{address}", h.HandleAccount)
}

// RegisterOracle mounts the coordinator callback and the owner-only account
// endpoints behind token auth.
func (h *Handler) RegisterOracle(r chi.Router, callbackAuth *auth.CallbackAuth) {
	r.With(auth.RequireCaller(callbackAuth, h.logger)).Post("/oracle/fulfillments", h.HandleFulfill)
	r.With(auth.RequireAccountOwner(callbackAuth, h.logger, "address")).Put("/accounts/{address}/payable", h.HandleSetPayable)
}

// HandleEnter handles POST /raffle/entries.
func (h *Handler) HandleEnter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.EnterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	player, payment, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	raffle, err := h.service.Enter(ctx, player, payment)
	if err != nil {
		h.logger.InfoContext(ctx, "raffle entry rejected",
			"request_id", requestID,
			"player", player.Hex(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.EnterResponse{
		Player:          player.Hex(),
		NumberOfPlayers: raffle.NumberOfPlayers(),
		Balance:         raffle.Balance.String(),
	})
}

func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	raffle, err := h.service.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewSnapshot(raffle))
}

func (h *Handler) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.Players(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.Hex()
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"players": out})
}

// HandlePlayer handles GET /raffle/players/{index}.
func (h *Handler) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "index must be a non-negative integer"))
		return
	}
	player, err := h.service.Player(r.Context(), index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"index": index, "player": player.Hex()})
}

func (h *Handler) HandleRecentWinner(w http.ResponseWriter, r *http.Request) {
	winner, err := h.service.RecentWinner(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"recent_winner": winner.Hex()})
}

func (h *Handler) HandleCheckUpkeep(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.CheckUpkeep(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUpkeepResponse(res))
}

// HandlePerformUpkeep handles POST /raffle/upkeep. Anyone may trigger the
// draw; the upkeep conditions are re-checked by the service.
func (h *Handler) HandlePerformUpkeep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.service.PerformUpkeep(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "draw requested over http",
		"request_id", requestcontext.RequestID(ctx),
		"vrf_request_id", id.String(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, models.PerformUpkeepResponse{RequestID: id.String()})
}

func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.Pending(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]models.PendingResponse, len(pending))
	for i, p := range pending {
		out[i] = models.NewPendingResponse(p)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pending": out})
}

// HandleEvents handles GET /raffle/events?limit=N.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := h.service.Notifications(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]models.NotificationResponse, len(events))
	for i, n := range events {
		out[i] = models.NewNotificationResponse(n)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

// HandleFulfill handles POST /oracle/fulfillments. The caller address comes
// from the verified coordinator token.
func (h *Handler) HandleFulfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.FulfillRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	vrfID, words, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Fulfill(ctx, requestcontext.Caller(ctx), vrfID, words)
	if err != nil {
		h.logger.WarnContext(ctx, "fulfillment rejected",
			"request_id", requestID,
			"vrf_request_id", vrfID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.FulfillResponse{
		Winner: res.Winner.Hex(),
		Payout: res.Payout.String(),
		Round:  res.Round,
	})
}

func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	acct, err := h.service.Account(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountResponse(acct))
}

// HandleSetPayable handles PUT /accounts/{address}/payable.
func (h *Handler) HandleSetPayable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.PayableRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	payable, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetPayable(ctx, addr, payable); err != nil {
		httputil.WriteError(w, err)
		return
	}
	acct, err := h.service.Account(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountResponse(acct))
}

func accountResponse(acct ledger.Account) models.AccountResponse {
	return models.AccountResponse{
		Address: acct.Address.Hex(),
		Balance: acct.Balance.String(),
		Payable: acct.Payable,
	}
}
