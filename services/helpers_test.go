package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskflow/config"
	"taskflow/models"
)

var fixedNow = time.Date(2024, 12, 1, 9, 30, 0, 0, time.UTC)

type memBlobs struct {
	mu    sync.Mutex
	next  int
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: map[string][]byte{}}
}

func (m *memBlobs) Store(_ context.Context, r io.Reader, _, _ string) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	handle := fmt.Sprintf("blob-%d", m.next)
	m.blobs[handle] = data
	return handle, int64(len(data)), nil
}

func (m *memBlobs) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[handle]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Delete(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, handle)
	return nil
}

type recordingCleaner struct {
	mu      sync.Mutex
	handles []string
}

func (r *recordingCleaner) Enqueue(handles ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handles...)
}

func (r *recordingCleaner) Handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.handles...)
}

type fakeTokens struct{}

func (fakeTokens) Generate(userID uint) (string, error) {
	return fmt.Sprintf("token-%d", userID), nil
}

func (fakeTokens) Parse(token string) (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(token, "token-%d", &id); err != nil {
		return 0, err
	}
	return id, nil
}

type testEnv struct {
	db      *gorm.DB
	svc     *Services
	blobs   *memBlobs
	cleaner *recordingCleaner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "taskflow.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.MigrateDB(db))

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{db: db, blobs: newMemBlobs(), cleaner: &recordingCleaner{}}
	env.svc = New(Dependencies{
		DB:      db,
		Blobs:   env.blobs,
		Cleaner: env.cleaner,
		Logger:  logrus.NewEntry(log),
		Now:     func() time.Time { return fixedNow },
	}, fakeTokens{})
	return env
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.svc.Auth.Register(context.Background(), RegisterInput{
		Username: name,
		Fullname: name,
		Email:    name + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) team(t *testing.T, owner *models.User, name string, members ...*models.User) *models.Team {
	t.Helper()
	ctx := context.Background()
	team, err := e.svc.Teams.CreateTeam(ctx, owner, name)
	require.NoError(t, err)
	for _, m := range members {
		_, err = e.svc.Teams.AddMember(ctx, owner, team.ID, m.Email)
		require.NoError(t, err)
		team, err = e.svc.Teams.AcceptInvitation(ctx, m, team.ID)
		require.NoError(t, err)
	}
	return team
}

func assertKind(t *testing.T, err error, kind Kind, msgAndArgs ...interface{}) {
	t.Helper()
	if assert.Error(t, err, msgAndArgs...) {
		assert.Equal(t, kind, KindOf(err), msgAndArgs...)
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func uintPtr(v uint) *uint { return &v }

func taskTitles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}
