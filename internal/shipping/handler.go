package shipping

import (
	"database/sql"
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
	r.POST("/shipments/deliver-order", h.deliver)
	r.POST("/shipments/cancel", h.cancel)
	r.GET("/shipments/:shipmentId", h.getByID)
	r.GET("/outbox/failed", h.getFailedOutbox)
}

type deliverRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
	OrderID    string `json:"orderId" binding:"required"`
	SagaLogID  string `json:"sagaLogId" binding:"required"`
}

// deliver is the saga's terminal forward step (spec.md §4.4
// "Shipping", §4.5): it creates the Shipment row, marks DELIVER_ORDER
// COMPLETED, and that completion promotes SagaLog.status to COMPLETED.
// Nothing is enqueued past this point — DELIVER_ORDER has no successor.
func (h *Handler) deliver(c *gin.Context) {
	idempotencyKey := c.GetHeader("idempotency-key")
	if idempotencyKey == "" {
		respond.Err(c, http.StatusBadRequest, errors.New("missing idempotency-key header"))
		return
	}

	var req deliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}

	if existing, err := h.repo.FindByIdempotencyKey(c.Request.Context(), idempotencyKey); err == nil {
		respond.OK(c, existing)
		return
	} else if !errors.Is(err, ErrNotFound) {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}

	log, err := h.sagas.FindByID(c.Request.Context(), nil, req.SagaLogID)
	if errors.Is(err, sagalog.ErrNotFound) {
		respond.Fail(c, "SagaLog not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}

	now := time.Now().UTC()
	shipmentID := uuid.New()
	shipment := &Shipment{
		ShipmentID:     shipmentID,
		IdempotencyKey: idempotencyKey,
		SagaID:         req.SagaLogID,
		OrderID:        req.OrderID,
		CustomerID:     req.CustomerID,
		Status:         StatusShipped,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	log.MarkStepInProgress(sagamodel.StepDeliverOrder)
	log.MarkStepCompleted(sagamodel.StepDeliverOrder)

	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		if err := h.repo.Insert(c.Request.Context(), tx, shipment); err != nil {
			return err
		}
		return h.sagas.Save(c.Request.Context(), tx, log)
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.log.Info("order delivered", "shipment_id", shipmentID, "order_id", req.OrderID, "saga_id", req.SagaLogID)
	respond.OK(c, shipment)
}

type cancelRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	SagaLogID string `json:"sagaLogId" binding:"required"`
}

// cancel marks the shipment CANCELLED. spec.md §4.5 lists Shipping
// compensation as "(if modelled)" — there is no ShippingFailed event in
// the closed eventType set (§3), so this endpoint is reachable directly
// by an operator or test harness, never by the automated backward
// chain, but remains a first-class compensating action per §6.
func (h *Handler) cancel(c *gin.Context) {
	idempotencyKey := c.GetHeader("idempotency-key")
	if idempotencyKey == "" {
		respond.Err(c, http.StatusBadRequest, errors.New("missing idempotency-key header"))
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}

	existing, err := h.repo.FindByOrderID(c.Request.Context(), req.OrderID)
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "shipment not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	if existing.Status == StatusCancelled {
		respond.Message(c, "already compensated", existing)
		return
	}

	log, err := h.sagas.FindByID(c.Request.Context(), nil, req.SagaLogID)
	if errors.Is(err, sagalog.ErrNotFound) {
		respond.Fail(c, "SagaLog not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}

	log.MarkStepCompensating(sagamodel.StepDeliverOrder)
	log.MarkStepCompensated(sagamodel.StepDeliverOrder)

	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		if err := h.repo.Cancel(c.Request.Context(), tx, req.OrderID, idempotencyKey); err != nil {
			return err
		}
		return h.sagas.Save(c.Request.Context(), tx, log)
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.log.Info("shipment cancelled", "order_id", req.OrderID, "saga_id", req.SagaLogID)
	respond.OK(c, nil)
}

func (h *Handler) getByID(c *gin.Context) {
	s, err := h.repo.FindByID(c.Request.Context(), c.Param("shipmentId"))
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "shipment not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, s)
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
