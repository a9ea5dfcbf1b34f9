package handlers

import (
	"net/http"
	"parley/internal/db"
	"parley/internal/models"
	"parley/internal/services"
	"parley/internal/utils"

	"github.com/gin-gonic/gin"
)

type AppealHandler struct {
	appeals *services.AppealService
}

func NewAppealHandler(appeals *services.AppealService) *AppealHandler {
	return &AppealHandler{appeals: appeals}
}

// Eligibility tells the current user whether they may appeal yet
func (h *AppealHandler) Eligibility(c *gin.Context) {
	currentUser := CurrentUser(c)
	c.JSON(http.StatusOK, h.appeals.CheckEligibility(currentUser))
}

// Submit files an appeal for the current user
func (h *AppealHandler) Submit(c *gin.Context) {
	currentUser := CurrentUser(c)
	statement := c.PostForm("statement")

	appeal, err := h.appeals.SubmitAppeal(c.Request.Context(), currentUser.ID, statement)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appeal)
}

// Pending lists undecided appeals for the admin dashboard, with the appeal
// statement rendered from markdown
func (h *AppealHandler) Pending(c *gin.Context) {
	var appeals []models.Appeal
	if err := db.DB.Preload("User").
		Where("status = ?", models.AppealStatusPending).
		Order("submitted_at ASC").
		Find(&appeals).Error; err != nil {
		RenderError(c, err)
		return
	}

	type pendingAppeal struct {
		models.Appeal
		StatementHTML string `json:"statement_html"`
	}
	out := make([]pendingAppeal, 0, len(appeals))
	for _, a := range appeals {
		out = append(out, pendingAppeal{
			Appeal:        a,
			StatementHTML: string(utils.RenderMarkdown(a.Statement)),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Decide records an admin verdict on an appeal
func (h *AppealHandler) Decide(c *gin.Context) {
	currentUser := CurrentUser(c)
	appealID := utils.StringToUint(c.Param("id"))
	decision := models.AppealDecision(c.PostForm("decision"))
	note := utils.SanitizeText(c.PostForm("note"))

	appeal, err := h.appeals.DecideAppeal(c.Request.Context(), appealID, currentUser, decision, note)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, appeal)
}
