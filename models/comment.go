package models

import "time"

// Comment is a first-class record referencing its task and author
type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Content   string    `gorm:"not null" json:"content"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Relations
	User  User          `gorm:"foreignKey:UserID" json:"-"`
	Files []CommentFile `gorm:"foreignKey:CommentID" json:"files"`
}

type CommentFile struct {
	ID        uint `gorm:"primarykey" json:"id"`
	CommentID uint `gorm:"not null;index" json:"comment_id"`
	FileMeta
	CreatedAt time.Time `json:"created_at"`
}

type CommentView struct {
	ID        uint          `json:"id"`
	Content   string        `json:"content"`
	TaskID    uint          `json:"task_id"`
	Author    UserSummary   `json:"author"`
	Files     []CommentFile `json:"files"`
	CreatedAt time.Time     `json:"created_at"`
}

// View renders the comment with its author preloaded.
func (c *Comment) View() CommentView {
	files := c.Files
	if files == nil {
		files = []CommentFile{}
	}
	return CommentView{
		ID:        c.ID,
		Content:   c.Content,
		TaskID:    c.TaskID,
		Author:    c.User.Summary(),
		Files:     files,
		CreatedAt: c.CreatedAt,
	}
}
