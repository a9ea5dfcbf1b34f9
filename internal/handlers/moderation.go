package handlers

import (
	"net/http"
	"parley/internal/db"
	"parley/internal/models"
	"parley/internal/services"
	"parley/internal/utils"

	"github.com/gin-gonic/gin"
)

type ModerationHandler struct {
	violations *services.ViolationService
}

func NewModerationHandler(violations *services.ViolationService) *ModerationHandler {
	return &ModerationHandler{violations: violations}
}

// PendingCosigns lists probationary decisions waiting for an admin cosign
func (h *ModerationHandler) PendingCosigns(c *gin.Context) {
	var decisions []models.ModeratorDecision
	if err := db.DB.Preload("Moderator").
		Where("requires_cosign = ? AND cosigned_at IS NULL", true).
		Order("created_at ASC").
		Find(&decisions).Error; err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, decisions)
}

// Cosign confirms a probationary moderator's decision and enforces the
// deferred consequence
func (h *ModerationHandler) Cosign(c *gin.Context) {
	currentUser := CurrentUser(c)
	decisionID := utils.StringToUint(c.Param("id"))

	decision, err := h.violations.CosignDecision(c.Request.Context(), decisionID, currentUser)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// OpenReviews lists open performance reviews for reports filed against
// moderators
func (h *ModerationHandler) OpenReviews(c *gin.Context) {
	var reviews []models.ModeratorPerformanceReview
	if err := db.DB.Preload("Moderator").
		Where("status = ?", models.ReviewStatusOpen).
		Order("created_at ASC").
		Find(&reviews).Error; err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// AuditTrail lists recent moderation events for a user
func (h *ModerationHandler) AuditTrail(c *gin.Context) {
	userID := utils.StringToUint(c.Param("id"))

	var events []models.ModerationEvent
	if err := db.DB.
		Where("subject_user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&events).Error; err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
