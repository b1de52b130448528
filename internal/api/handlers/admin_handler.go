package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocomet/rider-service/internal/api/dto"
	"github.com/gocomet/rider-service/pkg/logger"
)

// GetRider handles GET /v1/admin/riders/:userId
func (h *Handlers) GetRider(c *gin.Context) {
	view, err := h.Onboarding.FindProfile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", view)
}

// GetRiderDocuments handles GET /v1/admin/riders/:userId/documents
func (h *Handlers) GetRiderDocuments(c *gin.Context) {
	report, err := h.Onboarding.FindDocumentsStatus(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", report)
}

// VerifyDocument handles POST /v1/admin/riders/:userId/documents/:type/verify
func (h *Handlers) VerifyDocument(c *gin.Context) {
	rec, err := h.Onboarding.VerifyDocument(c.Request.Context(), actor(c), c.Param("userId"), c.Param("type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Document verified", rec)
}

// RejectDocument handles POST /v1/admin/riders/:userId/documents/:type/reject
func (h *Handlers) RejectDocument(c *gin.Context) {
	var req dto.RejectDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "A rejection reason is required", err)
		return
	}

	rec, err := h.Onboarding.RejectDocument(c.Request.Context(), actor(c), c.Param("userId"), c.Param("type"), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Document rejected", rec)
}

// SuspendRider handles POST /v1/admin/riders/:userId/suspend
func (h *Handlers) SuspendRider(c *gin.Context) {
	var req dto.SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "A suspension reason is required", err)
		return
	}

	view, err := h.Onboarding.Suspend(c.Request.Context(), actor(c), c.Param("userId"), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Rider suspended", view)
}

// ApproveRider handles POST /v1/admin/riders/:userId/approve
func (h *Handlers) ApproveRider(c *gin.Context) {
	view, err := h.Onboarding.Approve(c.Request.Context(), actor(c), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Rider approved", view)
}

// RecordDelivery handles POST /v1/admin/riders/:userId/deliveries
func (h *Handlers) RecordDelivery(c *gin.Context) {
	var req dto.DeliveryOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid delivery outcome", err)
		return
	}

	result, err := h.Onboarding.RecordDelivery(c.Request.Context(), c.Param("userId"), req.Outcome())
	if err != nil {
		h.respondError(c, err)
		return
	}
	message := "Delivery recorded"
	if !result.Applied {
		message = "Delivery already recorded"
	}
	respond(c, http.StatusOK, message, result)
}

// GetBankLastFour handles GET /v1/admin/riders/:userId/bank/last4
func (h *Handlers) GetBankLastFour(c *gin.Context) {
	userID := c.Param("userId")
	last4, err := h.Onboarding.AccountNumberLastFour(c.Request.Context(), actor(c), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Logger.Info("Bank account digits viewed",
		logger.UserID(userID),
		logger.String("admin_id", currentUserID(c)),
	)
	respond(c, http.StatusOK, "", dto.LastFourResponse{LastFour: last4})
}

// FindAvailableRiders handles GET /v1/admin/riders/available
func (h *Handlers) FindAvailableRiders(c *gin.Context) {
	var q dto.AvailableRidersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "lat and lon are required", err)
		return
	}

	candidates, err := h.Availability.FindAvailableRiders(c.Request.Context(), *q.Latitude, *q.Longitude, q.MaxDistance)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"count":  len(candidates),
		"riders": candidates,
	})
}

// FindByServiceArea handles GET /v1/admin/riders/area
func (h *Handlers) FindByServiceArea(c *gin.Context) {
	var q dto.ServiceAreaQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "city is required", err)
		return
	}

	views, err := h.Availability.FindByServiceArea(c.Request.Context(), q.City, q.ZipCode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"count":  len(views),
		"riders": views,
	})
}

// GetTopPerformers handles GET /v1/admin/riders/top
func (h *Handlers) GetTopPerformers(c *gin.Context) {
	var q dto.TopPerformersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "limit must be a number", err)
		return
	}

	views, err := h.Availability.GetTopPerformers(c.Request.Context(), q.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{
		"count":  len(views),
		"riders": views,
	})
}
