package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"taskflow/middleware"
	"taskflow/models"
	"taskflow/services"
	"taskflow/utils"
)

type RegisterRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=50"`
	Fullname     string `json:"fullname" validate:"required,max=100"`
	Organization string `json:"organization" validate:"required,max=100"`
	Workmail     string `json:"workmail" validate:"omitempty,email"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type AuthResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

type AuthController struct {
	Auth   *services.AuthService
	Logger *logrus.Entry
}

func NewAuthController(auth *services.AuthService, logger *logrus.Entry) *AuthController {
	return &AuthController{Auth: auth, Logger: logger}
}

func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	user, err := ac.Auth.Register(c.UserContext(), services.RegisterInput{
		Username:     req.Username,
		Fullname:     req.Fullname,
		Organization: req.Organization,
		Workmail:     req.Workmail,
		Email:        req.Email,
		Password:     req.Password,
	})
	if err != nil {
		return respondError(c, ac.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(user.Summary()))
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	token, user, err := ac.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, ac.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(AuthResponse{Token: token, User: user.Summary()}))
}

// Me returns the authenticated user's profile
func (ac *AuthController) Me(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(middleware.CurrentUser(c)))
}

func (ac *AuthController) GetUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID", nil)
	}
	user, err := ac.Auth.GetUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, ac.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(user))
}

func (ac *AuthController) ListUsers(c *fiber.Ctx) error {
	users, err := ac.Auth.ListUsers(c.UserContext())
	if err != nil {
		return respondError(c, ac.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(users))
}

func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := ac.Auth.ChangePassword(c.UserContext(), middleware.CurrentUser(c), req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, ac.Logger, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password changed successfully",
	})
}
