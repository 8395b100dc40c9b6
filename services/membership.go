package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskflow/models"
)

// MembershipEngine owns teams, the invitation lifecycle and the member set.
//
// Every membership mutation is a single conditional statement against the
// team_members table, whose (team_id, user_id) unique index makes an invite an
// append-if-absent.
type MembershipEngine struct {
	db       *gorm.DB
	maxTeams int
	logger   *logrus.Entry
}

// CreateTeam creates a team led by caller, who becomes its first verified member.
func (s *MembershipEngine) CreateTeam(ctx context.Context, caller *models.User, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInput("team name is required")
	}

	team := models.Team{
		Name:        name,
		CreatedByID: caller.ID,
		Members: []models.TeamMember{
			{UserID: caller.ID, IsVerified: true},
		},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialises concurrent creations by the same user so the cap holds.
		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, caller.ID).Error; err != nil {
			return lookupErr(err, "user", caller.ID)
		}

		var owned int64
		if err := tx.Model(&models.Team{}).Where("created_by_id = ?", caller.ID).Count(&owned).Error; err != nil {
			return fmt.Errorf("failed to count teams: %w", err)
		}
		if owned >= int64(s.maxTeams) {
			return newError(KindLimitExceeded, "maximum team limit reached (%d teams per user)", s.maxTeams)
		}

		var sameName int64
		if err := tx.Model(&models.Team{}).
			Where("created_by_id = ? AND name = ?", caller.ID, name).
			Count(&sameName).Error; err != nil {
			return fmt.Errorf("failed to check team name: %w", err)
		}
		if sameName > 0 {
			return conflict("team %q already exists", name)
		}

		if err := tx.Create(&team).Error; err != nil {
			return fmt.Errorf("failed to create team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"team_id": team.ID, "user_id": caller.ID}).Info("team created")
	return s.loadTeam(ctx, team.ID)
}

// AddMember invites the user registered under email. The new entry is pending
// until the invitee accepts it.
func (s *MembershipEngine) AddMember(ctx context.Context, caller *models.User, teamID uint, email string) (*models.Team, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, invalidInput("invalid email %q", email)
	}

	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.CreatedByID != caller.ID {
		return nil, forbidden("only the team leader can add members")
	}

	var target models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("no user found for email %s", email)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	entry := models.TeamMember{TeamID: team.ID, UserID: target.ID, IsVerified: false}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to add member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, conflict("user %s is already a member of the team", email)
	}

	s.logger.WithFields(logrus.Fields{"team_id": team.ID, "invitee_id": target.ID}).Info("invitation sent")
	return s.loadTeam(ctx, team.ID)
}

// AcceptInvitation turns the caller's pending entry into a verified membership.
func (s *MembershipEngine) AcceptInvitation(ctx context.Context, caller *models.User, teamID uint) (*models.Team, error) {
	if _, err := s.getTeam(ctx, teamID); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ? AND is_verified = ?", teamID, caller.ID, false).
		Update("is_verified", true)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("no pending invitation for team %d", teamID)
	}

	s.logger.WithFields(logrus.Fields{"team_id": teamID, "user_id": caller.ID}).Info("invitation accepted")
	return s.loadTeam(ctx, teamID)
}

// RejectInvitation removes the caller's pending entry.
func (s *MembershipEngine) RejectInvitation(ctx context.Context, caller *models.User, teamID uint) error {
	if _, err := s.getTeam(ctx, teamID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ? AND is_verified = ?", teamID, caller.ID, false).
		Delete(&models.TeamMember{})
	if res.Error != nil {
		return fmt.Errorf("failed to reject invitation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("no pending invitation for team %d", teamID)
	}

	s.logger.WithFields(logrus.Fields{"team_id": teamID, "user_id": caller.ID}).Info("invitation rejected")
	return nil
}

// RemoveMember revokes a pending invitation or evicts a verified member. The
// leader cannot remove themself; deleting the team is the only way out.
func (s *MembershipEngine) RemoveMember(ctx context.Context, caller *models.User, teamID, userID uint) (*models.Team, error) {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.CreatedByID != caller.ID {
		return nil, forbidden("only the team leader can remove members")
	}
	if userID == caller.ID {
		return nil, invalidOperation("the team leader cannot be removed from the team")
	}

	res := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ? AND user_id <> ?", teamID, userID, team.CreatedByID).
		Delete(&models.TeamMember{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to remove member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("user %d is not a member of team %d", userID, teamID)
	}

	s.logger.WithFields(logrus.Fields{"team_id": teamID, "user_id": userID}).Info("member removed")
	return s.loadTeam(ctx, teamID)
}

// LeaveTeam removes the caller's own verified membership.
func (s *MembershipEngine) LeaveTeam(ctx context.Context, caller *models.User, teamID uint) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.CreatedByID == caller.ID {
		return invalidOperation("the team leader cannot leave the team, delete it instead")
	}

	res := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ? AND is_verified = ?", teamID, caller.ID, true).
		Delete(&models.TeamMember{})
	if res.Error != nil {
		return fmt.Errorf("failed to leave team: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("you are not a member of team %d", teamID)
	}
	return nil
}

// DeleteTeam removes the team. Tasks assigned to it fall back to personal tasks
// of their creators in the same transaction.
func (s *MembershipEngine) DeleteTeam(ctx context.Context, caller *models.User, teamID uint) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.CreatedByID != caller.ID {
		return forbidden("only the team leader can delete the team")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("assigned_to = ?", team.ID).
			Updates(map[string]interface{}{"assigned_to": nil, "is_team_task": false}).Error; err != nil {
			return fmt.Errorf("failed to detach tasks: %w", err)
		}
		if err := tx.Where("team_id = ?", team.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete members: %w", err)
		}
		if err := tx.Unscoped().Delete(team).Error; err != nil {
			return fmt.Errorf("failed to delete team: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"team_id": teamID, "user_id": caller.ID}).Info("team deleted")
	return nil
}

// GetMyInvitations lists teams where the caller has a pending entry.
func (s *MembershipEngine) GetMyInvitations(ctx context.Context, caller *models.User) ([]models.Team, error) {
	return s.teamsByMembership(ctx, caller.ID, false)
}

// GetMyTeams lists teams where the caller is a verified member, leader included.
func (s *MembershipEngine) GetMyTeams(ctx context.Context, caller *models.User) ([]models.Team, error) {
	return s.teamsByMembership(ctx, caller.ID, true)
}

// GetTeam returns a team the caller is a verified member of. Anyone else gets
// NotFound so team existence is not leaked.
func (s *MembershipEngine) GetTeam(ctx context.Context, caller *models.User, teamID uint) (*models.Team, error) {
	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasVerifiedMember(caller.ID) {
		return nil, notFound("team %d not found", teamID)
	}
	return team, nil
}

func (s *MembershipEngine) teamsByMembership(ctx context.Context, userID uint, verified bool) ([]models.Team, error) {
	var teams []models.Team
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("team_members.id") }).
		Preload("Members.User").
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ? AND team_members.is_verified = ?", userID, verified).
		Order("teams.created_at, teams.id").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

func (s *MembershipEngine) getTeam(ctx context.Context, teamID uint) (*models.Team, error) {
	var team models.Team
	if err := s.db.WithContext(ctx).First(&team, teamID).Error; err != nil {
		return nil, lookupErr(err, "team", teamID)
	}
	return &team, nil
}

func (s *MembershipEngine) loadTeam(ctx context.Context, teamID uint) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("team_members.id") }).
		Preload("Members.User").
		First(&team, teamID).Error
	if err != nil {
		return nil, lookupErr(err, "team", teamID)
	}
	return &team, nil
}
