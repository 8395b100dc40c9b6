package services

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultMaxTeamsPerCreator is the number of teams a user may own.
const DefaultMaxTeamsPerCreator = 3

// BlobStore persists attachment bytes behind opaque handles.
type BlobStore interface {
	Store(ctx context.Context, r io.Reader, name, mimeType string) (handle string, size int64, err error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// BlobCleaner deletes blobs in the background after their owning record is gone.
// Enqueue must not block.
type BlobCleaner interface {
	Enqueue(handles ...string)
}

// Upload is one incoming attachment.
type Upload struct {
	Name     string
	MimeType string
	Body     io.Reader
}

type Config struct {
	MaxTeamsPerCreator int
}

// Dependencies is everything the core engines need. It is built once at
// process start.
type Dependencies struct {
	Config  Config
	DB      *gorm.DB
	Blobs   BlobStore
	Cleaner BlobCleaner
	Logger  *logrus.Entry
	Now     func() time.Time
}

// Services bundles the engines handed to the HTTP layer.
type Services struct {
	Auth       *AuthService
	Teams      *MembershipEngine
	Visibility *VisibilityResolver
	Tasks      *TaskService
	Comments   *CommentService
}

func New(deps Dependencies, tokens TokenCodec) *Services {
	if deps.Config.MaxTeamsPerCreator <= 0 {
		deps.Config.MaxTeamsPerCreator = DefaultMaxTeamsPerCreator
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	visibility := &VisibilityResolver{db: deps.DB}
	return &Services{
		Auth: &AuthService{
			db:     deps.DB,
			tokens: tokens,
			now:    deps.Now,
		},
		Teams: &MembershipEngine{
			db:       deps.DB,
			maxTeams: deps.Config.MaxTeamsPerCreator,
			logger:   deps.Logger.WithField("component", "membership"),
		},
		Visibility: visibility,
		Tasks: &TaskService{
			db:         deps.DB,
			visibility: visibility,
			blobs:      deps.Blobs,
			cleaner:    deps.Cleaner,
			now:        deps.Now,
			logger:     deps.Logger.WithField("component", "tasks"),
		},
		Comments: &CommentService{
			db:         deps.DB,
			visibility: visibility,
			blobs:      deps.Blobs,
			cleaner:    deps.Cleaner,
			logger:     deps.Logger.WithField("component", "comments"),
		},
	}
}
