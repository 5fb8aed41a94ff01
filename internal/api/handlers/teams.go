package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/pkg/utils"
)

type TeamsHandler struct {
	engine *engine.Engine
}

func NewTeamsHandler(eng *engine.Engine) *TeamsHandler {
	return &TeamsHandler{engine: eng}
}

// GetForm handles GET /teams/:team/form.
func (h *TeamsHandler) GetForm(c *gin.Context) {
	team := c.Param("team")
	if team == "" {
		utils.SendValidationError(c, "Team is required", "")
		return
	}
	utils.SendSuccess(c, h.engine.TeamForm(c.Request.Context(), team))
}

// GetHeadToHead handles GET /h2h?home=&away=.
func (h *TeamsHandler) GetHeadToHead(c *gin.Context) {
	report, err := h.engine.HeadToHead(c.Request.Context(), c.Query("home"), c.Query("away"))
	if err != nil {
		utils.SendValidationError(c, "Invalid fixture", err.Error())
		return
	}
	utils.SendSuccess(c, report)
}

func (h *TeamsHandler) ListCategories(c *gin.Context) {
	utils.SendSuccess(c, h.engine.Index().Categories())
}

// ListLeagues handles GET /categories/:category/leagues.
func (h *TeamsHandler) ListLeagues(c *gin.Context) {
	cat, err := category.ParseCategory(c.Param("category"))
	if err != nil {
		utils.SendNotFound(c, "Unknown category")
		return
	}
	leagues, err := h.engine.Index().Leagues(cat)
	if err != nil {
		utils.SendNotFound(c, "Unknown category")
		return
	}

	type leagueSummary struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		Teams   int    `json:"teams"`
	}
	out := make([]leagueSummary, 0, len(leagues))
	for _, l := range leagues {
		out = append(out, leagueSummary{Name: l.Name, Country: l.Country, Teams: len(l.Teams)})
	}
	utils.SendSuccess(c, out)
}

// ListTeams handles GET /leagues/:league/teams.
func (h *TeamsHandler) ListTeams(c *gin.Context) {
	teams, err := h.engine.Index().Teams(c.Param("league"))
	if errors.Is(err, category.ErrUnknownLeague) {
		utils.SendNotFound(c, "Unknown league")
		return
	}
	if err != nil {
		utils.SendInternalError(c, "Failed to list teams")
		return
	}
	utils.SendSuccess(c, teams)
}
