package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/gocomet/rider-service/internal/api/dto"
	"github.com/gocomet/rider-service/internal/domain/document"
	"github.com/gocomet/rider-service/internal/service/availability"
	"github.com/gocomet/rider-service/internal/service/onboarding"
	"github.com/gocomet/rider-service/pkg/auth"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/logger"
	"github.com/gocomet/rider-service/pkg/websocket"
)

// UploadConfig bounds multipart document uploads
type UploadConfig struct {
	MaxFileSize int64
	TempDir     string
}

// DependencyCheck reports whether a dependency is reachable
type DependencyCheck func(ctx context.Context) error

// Handlers holds all handler dependencies
type Handlers struct {
	Onboarding   *onboarding.Service
	Availability *availability.Service
	Hub          *websocket.Hub
	Tokens       *auth.Tokens
	Logger       *logger.Logger
	Upload       UploadConfig
	Checks       map[string]DependencyCheck
	upgrader     gorilla.Upgrader
}

// NewHandlers creates a new Handlers instance
func NewHandlers(onboard *onboarding.Service, avail *availability.Service, hub *websocket.Hub, tokens *auth.Tokens, log *logger.Logger, upload UploadConfig, wsReadBuffer, wsWriteBuffer int) *Handlers {
	if upload.MaxFileSize <= 0 {
		upload.MaxFileSize = 10 << 20
	}
	return &Handlers{
		Onboarding:   onboard,
		Availability: avail,
		Hub:          hub,
		Tokens:       tokens,
		Logger:       log,
		Upload:       upload,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  wsReadBuffer,
			WriteBufferSize: wsWriteBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return true // tokens, not origins, authenticate sockets
			},
		},
	}
}

// actor builds the transition actor from the request's token
func actor(c *gin.Context) document.Actor {
	claims := auth.GetClaims(c)
	if claims == nil {
		return document.Actor{}
	}
	if claims.Role == auth.RoleAdmin {
		return document.Admin(claims.UserID)
	}
	return document.Rider(claims.UserID)
}

// currentUserID is the rider the token belongs to
func currentUserID(c *gin.Context) string {
	if claims := auth.GetClaims(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, dto.SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			logger.String("path", c.FullPath()),
			logger.String("code", appErr.Code),
			logger.Err(err),
		)
	}
	c.JSON(appErr.Status, dto.ErrorResponse{
		Success: false,
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

func (h *Handlers) badRequest(c *gin.Context, message string, err error) {
	h.respondError(c, apperrors.Validation(message+": "+err.Error(), err))
}
