package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"taskflow/middleware"
	"taskflow/models"
	"taskflow/services"
	"taskflow/utils"
)

type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type TeamController struct {
	Teams  *services.MembershipEngine
	Logger *logrus.Entry
}

func NewTeamController(teams *services.MembershipEngine, logger *logrus.Entry) *TeamController {
	return &TeamController{Teams: teams, Logger: logger}
}

func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	var req CreateTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	team, err := tc.Teams.CreateTeam(c.UserContext(), middleware.CurrentUser(c), req.Name)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team.View()))
}

func (tc *TeamController) GetMyTeams(c *fiber.Ctx) error {
	teams, err := tc.Teams.GetMyTeams(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(views(teams)))
}

func (tc *TeamController) GetInvitations(c *fiber.Ctx) error {
	teams, err := tc.Teams.GetMyInvitations(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(views(teams)))
}

func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	teamID, ok := paramID(c, "teamId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team ID", nil)
	}
	team, err := tc.Teams.GetTeam(c.UserContext(), middleware.CurrentUser(c), teamID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(team.View()))
}

func (tc *TeamController) AddMember(c *fiber.Ctx) error {
	teamID, ok := paramID(c, "teamId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team ID", nil)
	}
	var req AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	team, err := tc.Teams.AddMember(c.UserContext(), middleware.CurrentUser(c), teamID, req.Email)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(team.View()))
}

func (tc *TeamController) RemoveMember(c *fiber.Ctx) error {
	teamID, ok := paramID(c, "teamId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team ID", nil)
	}
	userID, ok := paramID(c, "userId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID", nil)
	}

	team, err := tc.Teams.RemoveMember(c.UserContext(), middleware.CurrentUser(c), teamID, userID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(team.View()))
}

func (tc *TeamController) AcceptInvitation(c *fiber.Ctx) error {
	teamID, ok := paramID(c, "teamId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team ID", nil)
	}
	team, err := tc.Teams.AcceptInvitation(c.UserContext(), middleware.CurrentUser(c), teamID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(team.View()))
}

func (tc *TeamController) RejectInvitation(c *fiber.Ctx) error {
	teamID, ok := paramID(c, "teamId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team ID", nil)
	}
	if err := tc.Teams.RejectInvitation(c.UserContext(), middleware.CurrentUser(c), teamID); err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Invitation rejected"})
}

func (tc *TeamController) LeaveTeam(c *fiber.Ctx) error {
	teamID, ok := paramID(c, "teamId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team ID", nil)
	}
	if err := tc.Teams.LeaveTeam(c.UserContext(), middleware.CurrentUser(c), teamID); err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Left team"})
}

func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	teamID, ok := paramID(c, "teamId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid team ID", nil)
	}
	if err := tc.Teams.DeleteTeam(c.UserContext(), middleware.CurrentUser(c), teamID); err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Team deleted successfully"})
}

func views(teams []models.Team) []models.TeamView {
	out := make([]models.TeamView, 0, len(teams))
	for i := range teams {
		out = append(out, teams[i].View())
	}
	return out
}
