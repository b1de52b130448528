package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gocomet/rider-service/internal/api/dto"
	"github.com/gocomet/rider-service/internal/domain/rider"
	"github.com/gocomet/rider-service/internal/service/onboarding"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/logger"
)

// GetProfile handles GET /v1/rider/profile
func (h *Handlers) GetProfile(c *gin.Context) {
	view, err := h.Onboarding.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", view)
}

// UpdatePersonalInfo handles PUT /v1/rider/profile/personal
func (h *Handlers) UpdatePersonalInfo(c *gin.Context) {
	var req rider.PersonalInfoUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	view, err := h.Onboarding.UpdatePersonalInfo(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Personal information updated", view)
}

// UpdateVehicle handles PUT /v1/rider/profile/vehicle
func (h *Handlers) UpdateVehicle(c *gin.Context) {
	var req rider.VehicleUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	view, err := h.Onboarding.UpdateVehicle(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Vehicle information updated", view)
}

// UpdateBankDetails handles PUT /v1/rider/profile/bank
func (h *Handlers) UpdateBankDetails(c *gin.Context) {
	var req rider.BankDetailsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	view, err := h.Onboarding.UpdateBankDetails(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Bank details updated", view)
}

// GetOwnBankLastFour handles GET /v1/rider/profile/bank/last4
func (h *Handlers) GetOwnBankLastFour(c *gin.Context) {
	userID := currentUserID(c)
	last4, err := h.Onboarding.AccountNumberLastFour(c.Request.Context(), actor(c), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", dto.LastFourResponse{LastFour: last4})
}

// UploadDocument handles POST /v1/rider/documents/:type
func (h *Handlers) UploadDocument(c *gin.Context) {
	userID := currentUserID(c)
	docType := c.Param("type")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Upload.MaxFileSize+1<<20)

	file, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, "A document file is required", err)
		return
	}
	if file.Size > h.Upload.MaxFileSize {
		h.respondError(c, apperrors.Validation("Document file is too large", nil))
		return
	}

	var form dto.UploadDocumentForm
	if err := c.ShouldBind(&form); err != nil {
		h.badRequest(c, "Invalid form fields", err)
		return
	}
	meta, err := form.Metadata()
	if err != nil {
		h.badRequest(c, "Invalid form fields", err)
		return
	}

	tmpPath := filepath.Join(h.Upload.TempDir, uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		h.respondError(c, apperrors.Internal("Failed to buffer upload", err))
		return
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			h.Logger.Warn("Failed to remove buffered upload",
				logger.String("path", tmpPath),
				logger.Err(err),
			)
		}
	}()

	rec, err := h.Onboarding.UploadDocument(c.Request.Context(), actor(c), userID, onboarding.UploadRequest{
		DocumentType: docType,
		LocalPath:    tmpPath,
		Metadata:     meta,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Document uploaded", rec)
}

// GetDocumentsStatus handles GET /v1/rider/documents/status
func (h *Handlers) GetDocumentsStatus(c *gin.Context) {
	report, err := h.Onboarding.DocumentsStatus(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", report)
}

// UpdateAvailability handles PUT /v1/rider/availability
func (h *Handlers) UpdateAvailability(c *gin.Context) {
	var req rider.AvailabilityUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	view, err := h.Onboarding.UpdateAvailability(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Availability updated", view)
}

// UpdateLocation handles PUT /v1/rider/location
func (h *Handlers) UpdateLocation(c *gin.Context) {
	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	view, err := h.Onboarding.UpdateLocation(c.Request.Context(), currentUserID(c), *req.Longitude, *req.Latitude)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Location updated", gin.H{
		"currentLocation": view.CurrentLocation,
		"lastActiveAt":    view.LastActiveAt,
	})
}
