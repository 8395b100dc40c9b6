package controller

import (
	"fmt"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"taskflow/middleware"
	"taskflow/models"
	"taskflow/services"
	"taskflow/utils"
)

const dateLayout = "2006-01-02"

type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	DueDate     *string `json:"due_date"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	IsTeamTask  bool    `json:"is_team_task"`
	AssignedTo  *uint   `json:"assigned_to"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	DueDate     *string `json:"due_date"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	IsTeamTask  *bool   `json:"is_team_task"`
	AssignedTo  *uint   `json:"assigned_to"`
}

type TaskController struct {
	Tasks  *services.TaskService
	Logger *logrus.Entry
}

func NewTaskController(tasks *services.TaskService, logger *logrus.Entry) *TaskController {
	return &TaskController{Tasks: tasks, Logger: logger}
}

func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid due date", err)
	}

	task, err := tc.Tasks.CreateTask(c.UserContext(), middleware.CurrentUser(c), services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     due,
		Priority:    models.TaskPriority(req.Priority),
		IsTeamTask:  req.IsTeamTask,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	tasks, err := tc.Tasks.ListTasks(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(tasks))
}

func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}
	task, err := tc.Tasks.GetTask(c.UserContext(), middleware.CurrentUser(c), taskID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}
	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid due date", err)
	}

	upd := services.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     due,
		IsTeamTask:  req.IsTeamTask,
		AssignedTo:  req.AssignedTo,
	}
	if req.Priority != nil {
		p := models.TaskPriority(*req.Priority)
		upd.Priority = &p
	}

	task, err := tc.Tasks.UpdateTask(c.UserContext(), middleware.CurrentUser(c), taskID, upd)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) CloseTask(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}
	task, err := tc.Tasks.CloseTask(c.UserContext(), middleware.CurrentUser(c), taskID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(utils.SuccessResponse(task))
}

func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}
	if err := tc.Tasks.DeleteTask(c.UserContext(), middleware.CurrentUser(c), taskID); err != nil {
		return respondError(c, tc.Logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Task deleted successfully"})
}

// AttachFiles stores every file of the "files" multipart field on the task.
func (tc *TaskController) AttachFiles(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid multipart form", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No files uploaded", nil)
	}

	caller := middleware.CurrentUser(c)
	stored := make([]*models.TaskFile, 0, len(headers))
	for _, fh := range headers {
		file, err := attach(c, tc.Tasks, caller, taskID, fh)
		if err != nil {
			return respondError(c, tc.Logger, err)
		}
		stored = append(stored, file)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(stored))
}

func (tc *TaskController) DownloadFile(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}
	fileID, ok := paramID(c, "fileId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid file ID", nil)
	}

	meta, body, err := tc.Tasks.OpenFile(c.UserContext(), middleware.CurrentUser(c), taskID, fileID)
	if err != nil {
		return respondError(c, tc.Logger, err)
	}
	return sendBlob(c, meta.FileMeta, body)
}

func attach(c *fiber.Ctx, tasks *services.TaskService, caller *models.User, taskID uint, fh *multipart.FileHeader) (*models.TaskFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return tasks.AttachFile(c.UserContext(), caller, taskID, services.Upload{
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Body:     f,
	})
}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp.
func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, *raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
