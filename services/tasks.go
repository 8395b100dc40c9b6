package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"taskflow/models"
	"taskflow/storage"
)

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    models.TaskPriority
	IsTeamTask  bool
	AssignedTo  *uint
}

// TaskUpdate overwrites the non-nil fields. Setting IsTeamTask to false turns
// the task into a personal one; setting it to true requires a team.
type TaskUpdate struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *models.TaskPriority
	IsTeamTask  *bool
	AssignedTo  *uint
}

// TaskService enforces the create/update/close/delete rules for tasks.
type TaskService struct {
	db         *gorm.DB
	visibility *VisibilityResolver
	blobs      BlobStore
	cleaner    BlobCleaner
	now        func() time.Time
	logger     *logrus.Entry
}

// CreateTask creates a pending task owned by caller. A team task must target a
// team the caller can access.
func (s *TaskService) CreateTask(ctx context.Context, caller *models.User, in TaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidInput("title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalidInput("invalid priority %q", in.Priority)
	}
	if in.DueDate != nil && in.DueDate.Before(startOfDay(s.now())) {
		return nil, invalidInput("due date cannot be in the past")
	}

	task := models.Task{
		Title:       title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    priority,
		Status:      models.StatusPending,
		IsTeamTask:  in.IsTeamTask,
		CreatedByID: caller.ID,
	}
	if in.IsTeamTask {
		if err := s.checkAssignment(ctx, caller, in.AssignedTo); err != nil {
			return nil, err
		}
		task.AssignedTo = in.AssignedTo
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	task.Files = []models.TaskFile{}

	s.logger.WithFields(logrus.Fields{"task_id": task.ID, "user_id": caller.ID, "team_task": task.IsTeamTask}).Info("task created")
	return &task, nil
}

// GetTask returns a task visible to caller.
func (s *TaskService) GetTask(ctx context.Context, caller *models.User, taskID uint) (*models.Task, error) {
	return s.visibility.VisibleTask(ctx, caller.ID, taskID)
}

// ListTasks returns every task visible to caller.
func (s *TaskService) ListTasks(ctx context.Context, caller *models.User) ([]models.Task, error) {
	return s.visibility.ResolveVisibleTasks(ctx, caller.ID)
}

// UpdateTask edits a task. Only its creator may do so.
func (s *TaskService) UpdateTask(ctx context.Context, caller *models.User, taskID uint, upd TaskUpdate) (*models.Task, error) {
	task, err := s.ownedTask(ctx, caller, taskID, "edit")
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, invalidInput("title is required")
		}
		task.Title = title
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.DueDate != nil {
		task.DueDate = upd.DueDate
	}
	if upd.Priority != nil {
		if !upd.Priority.Valid() {
			return nil, invalidInput("invalid priority %q", *upd.Priority)
		}
		task.Priority = *upd.Priority
	}

	switch {
	case upd.IsTeamTask != nil && !*upd.IsTeamTask:
		task.IsTeamTask = false
		task.AssignedTo = nil
	case upd.IsTeamTask != nil || upd.AssignedTo != nil:
		target := task.AssignedTo
		if upd.AssignedTo != nil {
			target = upd.AssignedTo
		}
		if err := s.checkAssignment(ctx, caller, target); err != nil {
			return nil, err
		}
		task.IsTeamTask = true
		task.AssignedTo = target
	}

	err = s.db.WithContext(ctx).Model(task).
		Select("title", "description", "due_date", "priority", "is_team_task", "assigned_to").
		Updates(task).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return s.reload(ctx, task.ID)
}

// CloseTask marks a visible task completed. Closing a completed task is a no-op.
func (s *TaskService) CloseTask(ctx context.Context, caller *models.User, taskID uint) (*models.Task, error) {
	task, err := s.visibility.VisibleTask(ctx, caller.ID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.StatusCompleted {
		return task, nil
	}

	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", task.ID, models.StatusPending).
		Update("status", models.StatusCompleted).Error
	if err != nil {
		return nil, fmt.Errorf("failed to close task: %w", err)
	}
	return s.reload(ctx, task.ID)
}

// DeleteTask removes a task with its comments and attachment records. Blob
// deletion happens afterwards in the background.
func (s *TaskService) DeleteTask(ctx context.Context, caller *models.User, taskID uint) error {
	task, err := s.ownedTask(ctx, caller, taskID, "delete")
	if err != nil {
		return err
	}

	var handles []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taskHandles, commentHandles []string
		if err := tx.Model(&models.TaskFile{}).Where("task_id = ?", task.ID).Pluck("handle", &taskHandles).Error; err != nil {
			return fmt.Errorf("failed to list task files: %w", err)
		}

		comments := tx.Model(&models.Comment{}).Select("id").Where("task_id = ?", task.ID)
		if err := tx.Model(&models.CommentFile{}).Where("comment_id IN (?)", comments).Pluck("handle", &commentHandles).Error; err != nil {
			return fmt.Errorf("failed to list comment files: %w", err)
		}
		if err := tx.Where("comment_id IN (?)", comments).Delete(&models.CommentFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete comment files: %w", err)
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete task files: %w", err)
		}
		if err := tx.Unscoped().Delete(task).Error; err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}

		handles = append(taskHandles, commentHandles...)
		return nil
	})
	if err != nil {
		return err
	}

	if len(handles) > 0 {
		s.cleaner.Enqueue(handles...)
	}
	s.logger.WithFields(logrus.Fields{"task_id": task.ID, "user_id": caller.ID, "blobs": len(handles)}).Info("task deleted")
	return nil
}

// AttachFile stores an upload and records it on the task. Only the creator may
// attach files.
func (s *TaskService) AttachFile(ctx context.Context, caller *models.User, taskID uint, up Upload) (*models.TaskFile, error) {
	task, err := s.ownedTask(ctx, caller, taskID, "attach files to")
	if err != nil {
		return nil, err
	}
	meta, err := storeUpload(ctx, s.blobs, up)
	if err != nil {
		return nil, err
	}

	file := models.TaskFile{TaskID: task.ID, FileMeta: meta}
	if err := s.db.WithContext(ctx).Create(&file).Error; err != nil {
		s.cleaner.Enqueue(meta.Handle)
		return nil, fmt.Errorf("failed to record file: %w", err)
	}
	return &file, nil
}

// OpenFile streams an attachment of a visible task. The caller closes the reader.
func (s *TaskService) OpenFile(ctx context.Context, caller *models.User, taskID, fileID uint) (*models.TaskFile, io.ReadCloser, error) {
	task, err := s.visibility.VisibleTask(ctx, caller.ID, taskID)
	if err != nil {
		return nil, nil, err
	}
	for i := range task.Files {
		if task.Files[i].ID != fileID {
			continue
		}
		rc, err := s.blobs.Open(ctx, task.Files[i].Handle)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file %d: %w", fileID, err)
		}
		return &task.Files[i], rc, nil
	}
	return nil, nil, notFound("file %d not found", fileID)
}

func (s *TaskService) checkAssignment(ctx context.Context, caller *models.User, teamID *uint) error {
	if teamID == nil || *teamID == 0 {
		return invalidInput("a team task must be assigned to a team")
	}
	ok, err := s.visibility.CanAccessTeam(ctx, caller.ID, *teamID)
	if err != nil {
		return err
	}
	if !ok {
		return forbidden("you are not a verified member of team %d", *teamID)
	}
	return nil
}

func (s *TaskService) ownedTask(ctx context.Context, caller *models.User, taskID uint, action string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, lookupErr(err, "task", taskID)
	}
	if task.CreatedByID != caller.ID {
		return nil, forbidden("only the task creator can %s this task", action)
	}
	return &task, nil
}

func (s *TaskService) reload(ctx context.Context, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Preload("Files").First(&task, taskID).Error; err != nil {
		return nil, lookupErr(err, "task", taskID)
	}
	return &task, nil
}

func storeUpload(ctx context.Context, blobs BlobStore, up Upload) (models.FileMeta, error) {
	name := strings.TrimSpace(up.Name)
	if name == "" {
		return models.FileMeta{}, invalidInput("file name is required")
	}
	handle, size, err := blobs.Store(ctx, up.Body, name, up.MimeType)
	if errors.Is(err, storage.ErrTooLarge) {
		return models.FileMeta{}, invalidInput("file %s is too large", name)
	}
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("failed to store file %s: %w", name, err)
	}
	return models.FileMeta{Name: name, Handle: handle, Size: size, MimeType: up.MimeType}, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
