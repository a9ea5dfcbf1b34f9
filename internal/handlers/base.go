package handlers

import (
	"errors"
	"net/http"
	"parley/internal/middleware"
	"parley/internal/models"
	"parley/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CurrentUser pulls the session user loaded by the middleware.
func CurrentUser(c *gin.Context) *models.User {
	u, exists := c.Get(middleware.CheckUserKey)
	if !exists {
		return nil
	}
	return u.(*models.User)
}

// RenderError maps a core error onto an HTTP status and a JSON body.
func RenderError(c *gin.Context, err error) {
	var invalid *services.InvalidValueError
	var notEligible *services.AppealNotEligibleError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	case errors.As(err, &notEligible):
		c.JSON(http.StatusForbidden, gin.H{
			"error":         notEligible.Error(),
			"eligible_from": notEligible.EligibleFrom,
		})
	case errors.Is(err, services.ErrSelfReport),
		errors.Is(err, services.ErrSelfAssignment),
		errors.Is(err, services.ErrSelfResolution):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrReportRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrReportNotPending),
		errors.Is(err, services.ErrReportClosed),
		errors.Is(err, services.ErrAppealNotPending),
		errors.Is(err, services.ErrCosignNotRequired),
		errors.Is(err, services.ErrAlreadyCosigned):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
