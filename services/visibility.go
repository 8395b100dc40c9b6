package services

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"taskflow/models"
)

// VisibilityResolver derives what a caller can see from their memberships.
// Pending memberships never grant visibility.
type VisibilityResolver struct {
	db *gorm.DB
}

// ResolveAccessibleTeams returns the ids of teams the user leads or is a
// verified member of, in ascending order.
func (r *VisibilityResolver) ResolveAccessibleTeams(ctx context.Context, userID uint) ([]uint, error) {
	db := r.db.WithContext(ctx)
	verified := db.Model(&models.TeamMember{}).
		Select("team_id").
		Where("user_id = ? AND is_verified = ?", userID, true)

	var ids []uint
	err := db.Model(&models.Team{}).
		Where("created_by_id = ?", userID).
		Or("id IN (?)", verified).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve teams: %w", err)
	}
	return ids, nil
}

// CanAccessTeam reports whether teamID is among the user's accessible teams.
func (r *VisibilityResolver) CanAccessTeam(ctx context.Context, userID, teamID uint) (bool, error) {
	ids, err := r.ResolveAccessibleTeams(ctx, userID)
	if err != nil {
		return false, err
	}
	return containsID(ids, teamID), nil
}

// ResolveVisibleTasks returns the caller's personal tasks plus the team tasks of
// their accessible teams, ordered by due date (undated last) then priority,
// highest first.
func (r *VisibilityResolver) ResolveVisibleTasks(ctx context.Context, userID uint) ([]models.Task, error) {
	teamIDs, err := r.ResolveAccessibleTeams(ctx, userID)
	if err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	query := db.Preload("Files").Where("is_team_task = ? AND created_by_id = ?", false, userID)
	if len(teamIDs) > 0 {
		query = query.Or("is_team_task = ? AND assigned_to IN ?", true, teamIDs)
	}

	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	SortTasks(tasks)
	return tasks, nil
}

// VisibleTask loads a task and checks the caller may see it. Invisible and
// missing tasks are both reported as NotFound.
func (r *VisibilityResolver) VisibleTask(ctx context.Context, userID, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Preload("Files").First(&task, taskID).Error; err != nil {
		return nil, lookupErr(err, "task", taskID)
	}

	ok, err := r.canSee(ctx, userID, &task)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("task %d not found", taskID)
	}
	return &task, nil
}

func (r *VisibilityResolver) canSee(ctx context.Context, userID uint, task *models.Task) (bool, error) {
	if !task.IsTeamTask {
		return task.CreatedByID == userID, nil
	}
	if task.AssignedTo == nil {
		return false, nil
	}
	return r.CanAccessTeam(ctx, userID, *task.AssignedTo)
}

// SortTasks orders tasks by due date ascending with undated tasks last, then by
// priority descending, then by id.
func SortTasks(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra > rb
		}
		return a.ID < b.ID
	})
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
