package payment

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
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
	db          *sql.DB
	repo        *Repository
	sagas       *sagalog.Store
	outbox      *outbox.Store
	failureRate float64
	log         *slog.Logger
}

func NewHandler(db *sql.DB, repo *Repository, sagas *sagalog.Store, ob *outbox.Store, failureRate float64, log *slog.Logger) *Handler {
	return &Handler{db: db, repo: repo, sagas: sagas, outbox: ob, failureRate: failureRate, log: log}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/payments/process-payment", h.process)
	r.POST("/payments/refund", h.refund)
	r.GET("/payments/:paymentId", h.getByID)
	r.GET("/outbox/failed", h.getFailedOutbox)
}

type processRequest struct {
	Amount     float64 `json:"amount" binding:"required"`
	CustomerID string  `json:"customerId" binding:"required"`
	OrderID    string  `json:"orderId" binding:"required"`
	SagaLogID  string  `json:"sagaLogId" binding:"required"`
}

// process implements the common forward protocol (spec.md §4.4 step
// 1-5) with a synthetic failure rate standing in for a real payment
// gateway (§9's open question, made injectable via PAYMENT_FAILURE_RATE
// rather than hard-coded).
func (h *Handler) process(c *gin.Context) {
	idempotencyKey := c.GetHeader("idempotency-key")
	if idempotencyKey == "" {
		respond.Err(c, http.StatusBadRequest, errors.New("missing idempotency-key header"))
		return
	}

	var req processRequest
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
	paymentID := uuid.New()
	succeeded := rand.Float64() >= h.failureRate

	newPayment := &Payment{
		PaymentID:      paymentID,
		IdempotencyKey: idempotencyKey,
		SagaID:         req.SagaLogID,
		OrderID:        req.OrderID,
		CustomerID:     req.CustomerID,
		Amount:         req.Amount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	log.MarkStepInProgress(sagamodel.StepProcessPayment)

	var event sagamodel.OutboxEvent
	if succeeded {
		newPayment.Status = StatusProcessed
		log.MarkStepCompleted(sagamodel.StepProcessPayment)

		payload, merr := json.Marshal(map[string]interface{}{
			"orderId":    req.OrderID,
			"customerId": req.CustomerID,
			"productId":  log.ProductID,
			"quantity":   log.Quantity,
			"sagaLogId":  req.SagaLogID,
		})
		if merr != nil {
			respond.Err(c, http.StatusInternalServerError, merr)
			return
		}
		event = sagamodel.OutboxEvent{
			ID:             uuid.New(),
			AggregateID:    req.OrderID,
			EventType:      sagamodel.EventPaymentProcessed,
			Payload:        payload,
			TargetService:  sagamodel.ServiceInventory,
			TargetEndpoint: "/inventories/update-inventory",
			MaxRetries:     3,
			CreatedAt:      now,
		}
	} else {
		reason := "synthetic payment decline"
		newPayment.Status = StatusFailed
		newPayment.FailureReason = &reason
		log.MarkStepFailed(sagamodel.StepProcessPayment, reason)

		payload, merr := json.Marshal(map[string]interface{}{
			"orderId":   req.OrderID,
			"sagaLogId": req.SagaLogID,
			"reason":    reason,
		})
		if merr != nil {
			respond.Err(c, http.StatusInternalServerError, merr)
			return
		}
		event = sagamodel.OutboxEvent{
			ID:             uuid.New(),
			AggregateID:    req.OrderID,
			EventType:      sagamodel.EventPaymentFailed,
			Payload:        payload,
			TargetService:  sagamodel.ServiceOrder,
			TargetEndpoint: "/orders/compensate",
			MaxRetries:     3,
			CreatedAt:      now,
		}
	}

	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		if err := h.repo.Insert(c.Request.Context(), tx, newPayment); err != nil {
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

	if succeeded {
		h.log.Info("payment processed", "payment_id", paymentID, "order_id", req.OrderID, "saga_id", req.SagaLogID)
		respond.OK(c, newPayment)
		return
	}
	h.log.Info("payment declined", "payment_id", paymentID, "order_id", req.OrderID, "saga_id", req.SagaLogID)
	respond.Message(c, "payment declined", newPayment)
}

type refundRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	SagaLogID string `json:"sagaLogId" binding:"required"`
}

// refund implements the compensation protocol (spec.md §4.4): restore
// nothing monetary in this simulation, just mark the row REFUNDED and
// continue the backward chain toward Order.compensate.
func (h *Handler) refund(c *gin.Context) {
	idempotencyKey := c.GetHeader("idempotency-key")
	if idempotencyKey == "" {
		respond.Err(c, http.StatusBadRequest, errors.New("missing idempotency-key header"))
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Err(c, http.StatusBadRequest, err)
		return
	}

	existing, err := h.repo.FindByOrderID(c.Request.Context(), req.OrderID)
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "payment not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	if existing.Status == StatusRefunded {
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

	log.MarkStepCompensating(sagamodel.StepProcessPayment)
	log.MarkStepCompensated(sagamodel.StepProcessPayment)

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
		TargetService:  sagamodel.ServiceOrder,
		TargetEndpoint: "/orders/compensate",
		MaxRetries:     3,
		CreatedAt:      now,
	}

	err = txutil.Atomic(c.Request.Context(), h.db, func(tx *sql.Tx) error {
		if err := h.repo.Refund(c.Request.Context(), tx, req.OrderID, idempotencyKey); err != nil {
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

	h.log.Info("payment refunded", "order_id", req.OrderID, "saga_id", req.SagaLogID)
	respond.OK(c, nil)
}

func (h *Handler) getByID(c *gin.Context) {
	p, err := h.repo.FindByID(c.Request.Context(), c.Param("paymentId"))
	if errors.Is(err, ErrNotFound) {
		respond.Fail(c, "payment not found")
		return
	}
	if err != nil {
		respond.Err(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, p)
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
