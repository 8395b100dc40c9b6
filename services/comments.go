package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"taskflow/models"
)

// CommentService attaches comments to tasks under the task visibility gate.
type CommentService struct {
	db         *gorm.DB
	visibility *VisibilityResolver
	blobs      BlobStore
	cleaner    BlobCleaner
	logger     *logrus.Entry
}

// AddComment posts a comment on a visible task. Content may only be empty when
// files are attached.
func (s *CommentService) AddComment(ctx context.Context, caller *models.User, taskID uint, content string, files []Upload) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(files) == 0 {
		return nil, invalidInput("comment is required")
	}
	task, err := s.visibility.VisibleTask(ctx, caller.ID, taskID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{Content: content, TaskID: task.ID, UserID: caller.ID}
	var stored []string
	for _, up := range files {
		meta, err := storeUpload(ctx, s.blobs, up)
		if err != nil {
			if len(stored) > 0 {
				s.cleaner.Enqueue(stored...)
			}
			return nil, err
		}
		stored = append(stored, meta.Handle)
		comment.Files = append(comment.Files, models.CommentFile{FileMeta: meta})
	}

	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		if len(stored) > 0 {
			s.cleaner.Enqueue(stored...)
		}
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"comment_id": comment.ID, "task_id": task.ID, "user_id": caller.ID}).Info("comment added")
	return s.load(ctx, comment.ID)
}

// ListComments returns the comments of a visible task, oldest first.
func (s *CommentService) ListComments(ctx context.Context, caller *models.User, taskID uint) ([]models.Comment, error) {
	if _, err := s.visibility.VisibleTask(ctx, caller.ID, taskID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Files").
		Where("task_id = ?", taskID).
		Order("created_at, id").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Its author and the task creator may do so.
func (s *CommentService) DeleteComment(ctx context.Context, caller *models.User, commentID uint) error {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Files").First(&comment, commentID).Error; err != nil {
		return lookupErr(err, "comment", commentID)
	}

	if comment.UserID != caller.ID {
		var task models.Task
		if err := s.db.WithContext(ctx).Select("id", "created_by_id").First(&task, comment.TaskID).Error; err != nil {
			return lookupErr(err, "task", comment.TaskID)
		}
		if task.CreatedByID != caller.ID {
			return forbidden("only the author or the task creator can delete this comment")
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", comment.ID).Delete(&models.CommentFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete comment files: %w", err)
		}
		if err := tx.Delete(&models.Comment{}, comment.ID).Error; err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	handles := make([]string, 0, len(comment.Files))
	for _, f := range comment.Files {
		handles = append(handles, f.Handle)
	}
	if len(handles) > 0 {
		s.cleaner.Enqueue(handles...)
	}
	return nil
}

// OpenFile streams a comment attachment when the comment's task is visible.
func (s *CommentService) OpenFile(ctx context.Context, caller *models.User, commentID, fileID uint) (*models.CommentFile, io.ReadCloser, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Files").First(&comment, commentID).Error; err != nil {
		return nil, nil, lookupErr(err, "comment", commentID)
	}
	if _, err := s.visibility.VisibleTask(ctx, caller.ID, comment.TaskID); err != nil {
		return nil, nil, notFound("comment %d not found", commentID)
	}
	for i := range comment.Files {
		if comment.Files[i].ID != fileID {
			continue
		}
		rc, err := s.blobs.Open(ctx, comment.Files[i].Handle)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file %d: %w", fileID, err)
		}
		return &comment.Files[i], rc, nil
	}
	return nil, nil, notFound("file %d not found", fileID)
}

func (s *CommentService) load(ctx context.Context, commentID uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("User").Preload("Files").First(&comment, commentID).Error; err != nil {
		return nil, lookupErr(err, "comment", commentID)
	}
	return &comment, nil
}
