package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vroomshare/service-booking/internal/application"
	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/pkg/auth"
	"github.com/vroomshare/service-booking/pkg/domain"
	"github.com/vroomshare/service-booking/pkg/middleware"
	"github.com/vroomshare/service-booking/pkg/response"
)

const idempotencyHeader = "Idempotency-Key"

// IdempotencyStore remembers the outcome of create requests by key.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key string) (result string, done bool, err error)
	Complete(ctx context.Context, scope, key, result string) error
	Abort(ctx context.Context, scope, key string) error
}

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service     *application.BookingService
	idempotency IdempotencyStore
}

// NewBookingHandler creates a new BookingHandler. idempotency may be nil.
func NewBookingHandler(service *application.BookingService, idempotency IdempotencyStore) *BookingHandler {
	return &BookingHandler{service: service, idempotency: idempotency}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	r.GET("/api/v1/vehicles/:vehicleId/availability", authMW, h.CheckAvailability)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", h.CreateBooking)
		bookings.POST("/quote", h.QuotePrice)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/accept", h.AcceptBooking)
		bookings.POST("/:id/reject", h.RejectBooking)
		bookings.POST("/:id/confirm", h.ConfirmBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/share-contact", h.ShareContact)
		bookings.POST("/:id/ready", h.MarkReady)
		bookings.POST("/:id/pickup", h.RecordPickup)
		bookings.POST("/:id/return", h.RecordReturn)
		bookings.POST("/:id/complete", h.CompleteRental)
		bookings.POST("/:id/dispute", h.OpenDispute)
	}
}

// CheckAvailability handles GET /api/v1/vehicles/:vehicleId/availability?start=&end=.
func (h *BookingHandler) CheckAvailability(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("vehicleId"))
	if err != nil {
		response.BadRequest(c, "invalid vehicle ID")
		return
	}
	dates, err := bookingDomain.ParseDateRange(c.Query("start"), c.Query("end"), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.CheckAvailability(c.Request.Context(), vehicleID, dates)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// QuotePrice handles POST /api/v1/bookings/quote.
func (h *BookingHandler) QuotePrice(c *gin.Context) {
	var req application.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.QuotePrice(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateBooking handles POST /api/v1/bookings. A repeated Idempotency-Key returns the
// booking created by the first request.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorFrom(c, bookingDomain.RoleRenter)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	scope := actor.ID.String()
	key := c.GetHeader(idempotencyHeader)
	if key != "" && h.idempotency != nil {
		stored, done, err := h.idempotency.Begin(ctx, scope, key)
		if err != nil {
			response.Error(c, err)
			return
		}
		if done {
			h.replay(c, actor, stored)
			return
		}
	} else {
		key = ""
	}

	result, err := h.service.CreateBookingRequest(ctx, actor, req)
	if err != nil {
		if key != "" {
			if abortErr := h.idempotency.Abort(context.WithoutCancel(ctx), scope, key); abortErr != nil {
				_ = c.Error(abortErr)
			}
		}
		response.Error(c, err)
		return
	}
	if key != "" {
		if err := h.idempotency.Complete(context.WithoutCancel(ctx), scope, key, result.ID.String()); err != nil {
			_ = c.Error(err)
		}
	}

	response.Created(c, result)
}

func (h *BookingHandler) replay(c *gin.Context, actor bookingDomain.Actor, stored string) {
	bookingID, err := uuid.Parse(stored)
	if err != nil {
		response.Error(c, domain.NewConflictError("idempotency key was used for a different request"))
		return
	}
	result, err := h.service.GetBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings?as=renter|owner&status=.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFrom(c, bookingDomain.RoleRenter)
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListBookings(c.Request.Context(), actor, c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}
	def := bookingDomain.RoleRenter
	if role, _ := middleware.GetUserRole(c); role == auth.RoleAdmin {
		def = bookingDomain.RoleAdmin
	}
	actor, ok := actorFrom(c, def)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type confirmBody struct {
	PaymentMethod string `json:"payment_method"`
}

type completeBody struct {
	Checklist *bookingDomain.Checklist `json:"checklist"`
}

// AcceptBooking handles POST /api/v1/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	h.transition(c, bookingDomain.RoleOwner, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.AcceptBooking(ctx, id, actor)
	})
}

// RejectBooking handles POST /api/v1/bookings/:id/reject.
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var body reasonBody
	_ = c.ShouldBindJSON(&body)
	h.transition(c, bookingDomain.RoleOwner, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.RejectBooking(ctx, id, actor, body.Reason)
	})
}

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm. The payment method is only
// needed when retrying after a failed capture.
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	var body confirmBody
	_ = c.ShouldBindJSON(&body)
	h.transition(c, bookingDomain.RoleRenter, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.ConfirmAndPay(ctx, id, actor, body.PaymentMethod)
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var body reasonBody
	_ = c.ShouldBindJSON(&body)
	h.transition(c, bookingDomain.RoleRenter, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.CancelBooking(ctx, id, actor, body.Reason)
	})
}

// ShareContact handles POST /api/v1/bookings/:id/share-contact.
func (h *BookingHandler) ShareContact(c *gin.Context) {
	h.transition(c, bookingDomain.RoleOwner, h.service.ShareContact)
}

// MarkReady handles POST /api/v1/bookings/:id/ready.
func (h *BookingHandler) MarkReady(c *gin.Context) {
	h.transition(c, bookingDomain.RoleRenter, h.service.MarkReady)
}

// RecordPickup handles POST /api/v1/bookings/:id/pickup with the pickup checklist.
func (h *BookingHandler) RecordPickup(c *gin.Context) {
	var checklist bookingDomain.Checklist
	if err := c.ShouldBindJSON(&checklist); err != nil {
		response.BadRequest(c, "a pickup checklist is required")
		return
	}
	h.transition(c, bookingDomain.RoleRenter, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.RecordPickup(ctx, id, actor, checklist)
	})
}

// RecordReturn handles POST /api/v1/bookings/:id/return with the return checklist.
func (h *BookingHandler) RecordReturn(c *gin.Context) {
	var checklist bookingDomain.Checklist
	if err := c.ShouldBindJSON(&checklist); err != nil {
		response.BadRequest(c, "a return checklist is required")
		return
	}
	h.transition(c, bookingDomain.RoleRenter, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.RecordReturn(ctx, id, actor, checklist)
	})
}

// CompleteRental handles POST /api/v1/bookings/:id/complete.
func (h *BookingHandler) CompleteRental(c *gin.Context) {
	var body completeBody
	_ = c.ShouldBindJSON(&body)
	h.transition(c, bookingDomain.RoleRenter, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.CompleteRental(ctx, id, actor, body.Checklist)
	})
}

// OpenDispute handles POST /api/v1/bookings/:id/dispute.
func (h *BookingHandler) OpenDispute(c *gin.Context) {
	var body reasonBody
	_ = c.ShouldBindJSON(&body)
	h.transition(c, bookingDomain.RoleRenter, func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error) {
		return h.service.OpenDispute(ctx, id, actor, body.Reason)
	})
}

type transitionFunc func(ctx context.Context, id uuid.UUID, actor bookingDomain.Actor) (*application.BookingDTO, error)

func (h *BookingHandler) transition(c *gin.Context, def bookingDomain.Role, apply transitionFunc) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}
	actor, ok := actorFrom(c, def)
	if !ok {
		return
	}

	result, err := apply(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// actorFrom builds the acting party from the token and the ?as= parameter. Only platform
// admins may act as admin.
func actorFrom(c *gin.Context, def bookingDomain.Role) (bookingDomain.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return bookingDomain.Actor{}, false
	}

	role := def
	if as := c.Query("as"); as != "" {
		parsed, err := bookingDomain.ParseRole(as)
		if err != nil {
			response.Error(c, err)
			return bookingDomain.Actor{}, false
		}
		role = parsed
	}
	if role == bookingDomain.RoleAdmin {
		if platform, _ := middleware.GetUserRole(c); platform != auth.RoleAdmin {
			response.Error(c, domain.NewForbiddenError("admin role required"))
			return bookingDomain.Actor{}, false
		}
	}
	return bookingDomain.Actor{ID: userID, Role: role}, true
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, false
	}
	return bookingID, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
