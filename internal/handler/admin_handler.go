package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vroomshare/service-booking/internal/application"
	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/pkg/auth"
	"github.com/vroomshare/service-booking/pkg/middleware"
	"github.com/vroomshare/service-booking/pkg/response"
)

// AdminBookingHandler handles admin HTTP requests for booking management.
type AdminBookingHandler struct {
	service *application.BookingService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.BookingService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/payments/discrepancies", h.ListDiscrepancies)
		admin.POST("/bookings/:id/refund", h.RefundBooking)
	}
}

// ListBookings handles GET /api/v1/admin/bookings?status=&vehicle_id=&renter_id=&owner_id=.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	var filter bookingDomain.ListFilter
	if s := c.Query("status"); s != "" {
		status, err := bookingDomain.ParseBookingStatus(s)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		filter.Status = status
	}
	for param, dst := range map[string]**uuid.UUID{
		"vehicle_id": &filter.VehicleID,
		"renter_id":  &filter.RenterID,
		"owner_id":   &filter.OwnerID,
	} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid "+param)
			return
		}
		*dst = &id
	}

	page, limit := parsePagination(c)
	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListDiscrepancies handles GET /api/v1/admin/payments/discrepancies?unresolved=true.
func (h *AdminBookingHandler) ListDiscrepancies(c *gin.Context) {
	unresolvedOnly := c.Query("unresolved") == "true"
	page, limit := parsePagination(c)

	items, total, err := h.service.ListDiscrepancies(c.Request.Context(), unresolvedOnly, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

type refundBody struct {
	// Amount is a partial refund; omit it to refund the remaining captured amount.
	Amount *int64 `json:"amount"`
}

// RefundBooking handles POST /api/v1/admin/bookings/:id/refund.
func (h *AdminBookingHandler) RefundBooking(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var body refundBody
	_ = c.ShouldBindJSON(&body)
	if body.Amount != nil && *body.Amount <= 0 {
		response.BadRequest(c, "refund amount must be positive")
		return
	}

	actor := bookingDomain.Actor{ID: adminID, Role: bookingDomain.RoleAdmin}
	result, err := h.service.RefundBooking(c.Request.Context(), actor, bookingID, body.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
