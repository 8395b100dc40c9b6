package models

import (
	"time"

	"gorm.io/gorm"
)

// Team groups users collaborating on team tasks
type Team struct {
	gorm.Model
	Name        string `gorm:"not null;index" json:"name"`
	CreatedByID uint   `gorm:"not null;index" json:"created_by_id"`

	// Relations
	CreatedBy User         `gorm:"foreignKey:CreatedByID" json:"-"`
	Members   []TeamMember `gorm:"foreignKey:TeamID" json:"members"`
}

// TeamMember is one entry of a team's member set. An unverified entry is a
// pending invitation.
type TeamMember struct {
	ID         uint `gorm:"primarykey" json:"-"`
	TeamID     uint `gorm:"not null;uniqueIndex:idx_team_user" json:"team_id"`
	UserID     uint `gorm:"not null;uniqueIndex:idx_team_user;index" json:"user_id"`
	IsVerified bool `gorm:"not null;default:false" json:"is_verified"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// HasVerifiedMember reports whether userID is a verified member of the team.
// Members must be loaded.
func (t *Team) HasVerifiedMember(userID uint) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return m.IsVerified
		}
	}
	return false
}

// MemberView is a member entry with the user populated
type MemberView struct {
	User       UserSummary `json:"user"`
	IsVerified bool        `json:"is_verified"`
}

type TeamView struct {
	ID        uint         `json:"id"`
	Name      string       `json:"name"`
	CreatedBy UserSummary  `json:"created_by"`
	Members   []MemberView `json:"members"`
	CreatedAt time.Time    `json:"created_at"`
}

// View renders the team with CreatedBy and Members.User preloaded.
func (t *Team) View() TeamView {
	members := make([]MemberView, 0, len(t.Members))
	for i := range t.Members {
		members = append(members, MemberView{
			User:       t.Members[i].User.Summary(),
			IsVerified: t.Members[i].IsVerified,
		})
	}
	return TeamView{
		ID:        t.ID,
		Name:      t.Name,
		CreatedBy: t.CreatedBy.Summary(),
		Members:   members,
		CreatedAt: t.CreatedAt,
	}
}
