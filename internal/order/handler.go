package order

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"saga_fulfillment/internal/outbox"
	"saga_fulfillment/internal/respond"
	"saga_fulfillment/internal/sagaerr"
	"saga_fulfillment/internal/sagalog"
	"saga_fulfillment/internal/sagamodel"
	"saga_fulfillment/internal/txutil"
	"saga_fulfillment/pkg/uuid"
)

// Handler wires the Order participant's HTTP surface: saga initiation,
// the terminal backward compensation hop, and the order/saga read
// models (spec.md §4.4 "Order", §6).
type Handler struct {
	db     *sql.DB
	repo   *Repository
	sagas  *sagalog.Store
	outbox *outbox.Store
	log    *slog.Logger
}

func NewHandler(db *sql.DB, repo *Repository, sagas *sagalog.Store, ob *outbox.Store, log *slog.Logger) *Handler {
	return &Handler{db: db, repo: repo, sagas: sagas, outbox: ob, log: log}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/order/start", h.start)
	r.POST("/orders/compensate", h.compensate)
	r.GET("/order/:orderId", h.getByID)
	r.GET("/sagas/:sagaId", h.getSaga)
	r.GET("/outbox/failed", h.getFailedOutbox)
}

type startRequest struct {
	CustomerID string  `json:"customerId" binding:"required"`
	ProductID  string  `json:"productId" binding:"required"`
	Quantity   int     `json:"quantity" binding:"required"`
	TotalPrice float64 `json:"totalPrice" binding:"required"`
}

type startResponse struct {
	OrderID string `json:"orderId"`
	SagaID  string `json:"sagaId"`
}

// start implements the saga's first step (spec.md §4.4, §4.5): create
// the SagaLog with all four steps PENDING, create the Order row
// CONFIRMED, mark CREATE_ORDER COMPLETED, and append OrderCreated
// routed to payment:/payments/process-payment — all atomic in one
// local transaction.
func (h *Handler) start(c *gin.Context) {
	idempotencyKey := c.GetHeader("idempotency-key")
	if idempotencyKey == "" {
		respond.Err(c, http.StatusBadRequest, errors.New("missing idempotency-key header"))
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}

	// Step 1 of the common forward protocol: replay short-circuit.
	if existing, err := h.repo.FindByIdempotencyKey(c.Request.Context(), idempotencyKey); err == nil {
		respond.OK(c, startResponse{OrderID: existing.OrderID, SagaID: existing.SagaID})
		return
	} else if !errors.Is(err, ErrNotFound) {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}

	now := time.Now().UTC()
	sagaID := uuid.New()
	orderID := uuid.New()

	log := &sagamodel.SagaLog{
		SagaID:         sagaID,
		IdempotencyKey: idempotencyKey,
		CustomerID:     req.CustomerID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		TotalPrice:     req.TotalPrice,
		OrderID:        &orderID,
		Status:         sagamodel.SagaStarted,
		Steps:          sagamodel.NewSteps(),
		CreatedAt:      now,
	}
	log.MarkStepCompleted(sagamodel.StepCreateOrder)

	newOrder := &Order{
		OrderID:        orderID,
		IdempotencyKey: idempotencyKey,
		SagaID:         sagaID,
		CustomerID:     req.CustomerID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		TotalPrice:     req.TotalPrice,
		Status:         StatusConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	payload, err := json.Marshal(map[string]interface{}{
		"amount":     req.TotalPrice,
		"customerId": req.CustomerID,
		"orderId":    orderID,
		"sagaLogId":  sagaID,
	})
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	event := sagamodel.OutboxEvent{
		ID:             uuid.New(),
		AggregateID:    orderID,
		EventType:      sagamodel.EventOrderCreated,
		Payload:        payload,
		TargetService:  sagamodel.ServicePayment,
		TargetEndpoint: "/payments/process-payment",
		MaxRetries:     3,
		CreatedAt:      now,
	}

	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		if err := h.repo.Insert(c.Request.Context(), tx, newOrder); err != nil {
			return err
		}
		if err := h.sagas.Save(c.Request.Context(), tx, log); err != nil {
			if errors.Is(err, sagalog.ErrDuplicateIdempotencyKey) {
				return sagaerr.Validation(err)
			}
			return err
		}
		return h.outbox.Append(c.Request.Context(), tx, event)
	})
	if err != nil {
		// A concurrent /order/start with the same idempotency-key may have
		// won the race and already committed between our pre-transaction
		// check and this insert; recover the same way the sequential-retry
		// path does instead of surfacing the loser's constraint violation.
		if errors.Is(err, ErrDuplicateIdempotencyKey) || errors.Is(err, sagalog.ErrDuplicateIdempotencyKey) {
			if existing, ferr := h.repo.FindByIdempotencyKey(c.Request.Context(), idempotencyKey); ferr == nil {
				respond.OK(c, startResponse{OrderID: existing.OrderID, SagaID: existing.SagaID})
				return
			}
		}
		h.respondErr(c, err)
		return
	}

	h.log.Info("saga started", "saga_id", sagaID, "order_id", orderID)
	respond.OK(c, startResponse{OrderID: orderID, SagaID: sagaID})
}

type compensateRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// compensate is the terminal hop of the backward chain (spec.md §4.5):
// it carries no idempotency-key header (§6), so it is made idempotent
// by checking the order's own status instead.
func (h *Handler) compensate(c *gin.Context) {
	var req compensateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}

	existing, err := h.repo.FindByOrderID(c.Request.Context(), req.OrderID)
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "order not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	if existing.Status == StatusCompensated {
		respond.Message(c, "already compensated", nil)
		return
	}

	log, err := h.sagas.FindByOrderID(c.Request.Context(), nil, req.OrderID)
	if errors.Is(err, sagalog.ErrNotFound) {
		respond.Fail(c, "SagaLog not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}

	log.MarkStepCompensating(sagamodel.StepCreateOrder)
	log.MarkStepCompensated(sagamodel.StepCreateOrder)

	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		if err := h.repo.Compensate(c.Request.Context(), tx, req.OrderID); err != nil {
			return err
		}
		return h.sagas.Save(c.Request.Context(), tx, log)
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.log.Info("order compensated", "order_id", req.OrderID, "saga_id", log.SagaID)
	respond.OK(c, nil)
}

func (h *Handler) getByID(c *gin.Context) {
	order, err := h.repo.FindByOrderID(c.Request.Context(), c.Param("orderId"))
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "order not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, order)
}

func (h *Handler) getSaga(c *gin.Context) {
	log, err := h.sagas.FindByID(c.Request.Context(), nil, c.Param("sagaId"))
	if errors.Is(err, sagalog.ErrNotFound) {
		respond.Fail(c, "saga not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, log)
}

func (h *Handler) getFailedOutbox(c *gin.Context) {
	events, err := h.outbox.FindTerminallyFailed(c.Request.Context())
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, events)
}

func (h *Handler) respondErr(c *gin.Context, err error) {
	switch sagaerr.KindOf(err) {
	case sagaerr.KindValidation:
		respond.Err(c, http.StatusBadRequest, err)
	case sagaerr.KindNotFound:
		respond.Fail(c, err.Error())
	case sagaerr.KindTransient:
		respond.Err(c, http.StatusServiceUnavailable, err)
	default:
		respond.Err(c, http.StatusInternalServerError, err)
	}
}
