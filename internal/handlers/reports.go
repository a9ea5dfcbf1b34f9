package handlers

import (
	"net/http"
	"parley/internal/db"
	"parley/internal/models"
	"parley/internal/services"
	"parley/internal/utils"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Create files a report against a post or comment
func (h *ReportHandler) Create(c *gin.Context) {
	currentUser := CurrentUser(c)

	reportedUserID := utils.StringToUint(c.PostForm("reported_user_id"))
	reportableType := c.PostForm("reportable_type")
	reportableID := utils.StringToUint(c.PostForm("reportable_id"))
	reason := models.ReportReason(c.PostForm("reason"))
	note := utils.SanitizeText(c.PostForm("note"))

	report, err := h.reports.CreateReport(c.Request.Context(), currentUser, reportedUserID, reportableType, reportableID, reason, note)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// Queue lists pending reports for the moderator dashboard
func (h *ReportHandler) Queue(c *gin.Context) {
	var reports []models.Report
	if err := db.DB.Preload("Reporter").Preload("ReportedUser").
		Where("status = ?", models.ReportStatusPending).
		Order("created_at ASC").
		Limit(50).
		Find(&reports).Error; err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) Assign(c *gin.Context) {
	currentUser := CurrentUser(c)
	reportID := utils.StringToUint(c.Param("id"))

	report, err := h.reports.AssignReport(c.Request.Context(), reportID, currentUser)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) Resolve(c *gin.Context) {
	currentUser := CurrentUser(c)
	reportID := utils.StringToUint(c.Param("id"))
	resolution := models.ReportResolution(c.PostForm("resolution"))
	note := utils.SanitizeText(c.PostForm("note"))
	ruleRef := c.PostForm("rule_ref")
	modNote := utils.SanitizeText(c.PostForm("mod_note"))

	report, err := h.reports.ResolveReport(c.Request.Context(), reportID, currentUser, resolution, note, ruleRef, modNote)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) Dismiss(c *gin.Context) {
	currentUser := CurrentUser(c)
	reportID := utils.StringToUint(c.Param("id"))
	note := utils.SanitizeText(c.PostForm("note"))

	report, err := h.reports.DismissReport(c.Request.Context(), reportID, currentUser, note)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) Escalate(c *gin.Context) {
	currentUser := CurrentUser(c)
	reportID := utils.StringToUint(c.Param("id"))

	report, err := h.reports.EscalateReport(c.Request.Context(), reportID, currentUser)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
