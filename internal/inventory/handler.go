package inventory

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
	r.POST("/inventories/update-inventory", h.update)
	r.POST("/inventories/compensate", h.compensate)
	r.POST("/inventories/initialize", h.initialize)
	r.GET("/inventories/:productId", h.getByID)
	r.GET("/outbox/failed", h.getFailedOutbox)
}

type updateRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
	SagaLogID string `json:"sagaLogId" binding:"required"`
}

// update implements the common forward protocol for Inventory (spec.md
// §4.4): auto-create the item at 100 units if absent, check
// availability, reserve or fail, and route the next outbox event.
func (h *Handler) update(c *gin.Context) {
	idempotencyKey := c.GetHeader("idempotency-key")
	if idempotencyKey == "" {
		respond.Err(c, http.StatusBadRequest, errors.New("missing idempotency-key header"))
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}

	if existing, err := h.repo.FindReservationByIdempotencyKey(c.Request.Context(), idempotencyKey); err == nil {
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
	reservationID := uuid.New()
	reservation := &Reservation{
		ReservationID:  reservationID,
		IdempotencyKey: idempotencyKey,
		SagaID:         req.SagaLogID,
		OrderID:        req.OrderID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	log.MarkStepInProgress(sagamodel.StepUpdateInventory)

	var event sagamodel.OutboxEvent
	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		item, err := h.repo.LoadOrInitItem(c.Request.Context(), tx, req.ProductID)
		if err != nil {
			return err
		}

		sufficient := item.Quantity-item.ReservedQuantity >= req.Quantity
		if sufficient {
			if err := h.repo.Reserve(c.Request.Context(), tx, req.ProductID, req.Quantity); err != nil {
				return err
			}
			reservation.Status = ReservationReserved
			log.MarkStepCompleted(sagamodel.StepUpdateInventory)

			payload, merr := json.Marshal(map[string]interface{}{
				"orderId":    req.OrderID,
				"customerId": log.CustomerID,
				"sagaLogId":  req.SagaLogID,
			})
			if merr != nil {
				return sagaerr.Terminal(merr)
			}
			event = sagamodel.OutboxEvent{
				ID:             uuid.New(),
				AggregateID:    req.OrderID,
				EventType:      sagamodel.EventInventoryUpdated,
				Payload:        payload,
				TargetService:  sagamodel.ServiceShipping,
				TargetEndpoint: "/shipments/deliver-order",
				MaxRetries:     3,
				CreatedAt:      now,
			}
		} else {
			reason := "insufficient inventory"
			reservation.Status = ReservationFailed
			reservation.FailureReason = &reason
			log.MarkStepFailed(sagamodel.StepUpdateInventory, reason)

			payload, merr := json.Marshal(map[string]interface{}{
				"orderId":   req.OrderID,
				"sagaLogId": req.SagaLogID,
				"reason":    reason,
			})
			if merr != nil {
				return sagaerr.Terminal(merr)
			}
			event = sagamodel.OutboxEvent{
				ID:             uuid.New(),
				AggregateID:    req.OrderID,
				EventType:      sagamodel.EventInventoryFailed,
				Payload:        payload,
				TargetService:  sagamodel.ServicePayment,
				TargetEndpoint: "/payments/refund",
				MaxRetries:     3,
				CreatedAt:      now,
			}
		}

		if err := h.repo.InsertReservation(c.Request.Context(), tx, reservation); err != nil {
			return err
		}
		if err := h.sagas.Save(c.Request.Context(), tx, log); err != nil {
			return err
		}
		return h.outbox.Append(c.Request.Context(), tx, event)
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}

	if reservation.Status == ReservationReserved {
		h.log.Info("inventory reserved", "product_id", req.ProductID, "order_id", req.OrderID, "saga_id", req.SagaLogID)
		respond.OK(c, reservation)
		return
	}
	h.log.Info("inventory insufficient", "product_id", req.ProductID, "order_id", req.OrderID, "saga_id", req.SagaLogID)
	respond.Message(c, "insufficient inventory", reservation)
}

type compensateRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
	SagaLogID string `json:"sagaLogId" binding:"required"`
}

// compensate restores quantity and reservedQuantity and continues the
// backward chain toward Payment.refund (spec.md §4.5).
func (h *Handler) compensate(c *gin.Context) {
	idempotencyKey := c.GetHeader("idempotency-key")
	if idempotencyKey == "" {
		respond.Err(c, http.StatusBadRequest, errors.New("missing idempotency-key header"))
		return
	}

	var req compensateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}

	existing, err := h.repo.FindReservationByOrderAndProduct(c.Request.Context(), req.OrderID, req.ProductID)
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "reservation not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	if existing.Status == ReservationCompensated {
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

	log.MarkStepCompensating(sagamodel.StepUpdateInventory)
	log.MarkStepCompensated(sagamodel.StepUpdateInventory)

	now := time.Now().UTC()
	payload, merr := json.Marshal(map[string]interface{}{
		"orderId":   req.OrderID,
		"sagaLogId": req.SagaLogID,
	})
	if merr != nil {
		respond.Err(c, http.StatusInternalServerError, merr)
		return
	}
	event := sagamodel.OutboxEvent{
		ID:             uuid.New(),
		AggregateID:    req.OrderID,
		EventType:      sagamodel.EventOrderCompensated,
		Payload:        payload,
		TargetService:  sagamodel.ServicePayment,
		TargetEndpoint: "/payments/refund",
		MaxRetries:     3,
		CreatedAt:      now,
	}

	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		// Only reverse stock if the original reservation actually
		// decremented it; a failed forward call never reserved anything.
		if existing.Status == ReservationReserved {
			if err := h.repo.Release(c.Request.Context(), tx, req.ProductID, req.Quantity); err != nil {
				return err
			}
		}
		if err := h.repo.CompensateReservation(c.Request.Context(), tx, existing.ReservationID, idempotencyKey); err != nil {
			return err
		}
		if err := h.sagas.Save(c.Request.Context(), tx, log); err != nil {
			return err
		}
		return h.outbox.Append(c.Request.Context(), tx, event)
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.log.Info("inventory compensated", "product_id", req.ProductID, "order_id", req.OrderID, "saga_id", req.SagaLogID)
	respond.OK(c, nil)
}

type initializeRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// initialize is an operator-facing CRUD endpoint, outside the saga
// protocol (spec.md §6 lists it with no header/idempotency semantics).
func (h *Handler) initialize(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}
	if err := h.repo.SetStock(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, nil)
}

func (h *Handler) getByID(c *gin.Context) {
	item, err := h.repo.FindItem(c.Request.Context(), c.Param("productId"))
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "inventory item not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, item)
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
