package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_AddAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")
	eng := env.team(t, alice, "Eng", bob)

	task, err := env.svc.Tasks.CreateTask(ctx, alice, TaskInput{Title: "Ship", IsTeamTask: true, AssignedTo: uintPtr(eng.ID)})
	require.NoError(t, err)

	_, err = env.svc.Comments.AddComment(ctx, alice, task.ID, "  ", nil)
	assertKind(t, err, KindInvalidInput, "empty comment")

	_, err = env.svc.Comments.AddComment(ctx, carol, task.ID, "hi", nil)
	assertKind(t, err, KindNotFound, "outsiders cannot comment")

	_, err = env.svc.Comments.ListComments(ctx, carol, task.ID)
	assertKind(t, err, KindNotFound, "outsiders cannot read comments")

	first, err := env.svc.Comments.AddComment(ctx, alice, task.ID, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", first.View().Author.Username)

	second, err := env.svc.Comments.AddComment(ctx, bob, task.ID, "", []Upload{
		{Name: "trace.log", MimeType: "text/plain", Body: strings.NewReader("trace")},
	})
	require.NoError(t, err, "a file alone is a valid comment")
	require.Len(t, second.Files, 1)

	comments, err := env.svc.Comments.ListComments(ctx, bob, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)
	assert.Equal(t, "bob", comments[1].View().Author.Username)

	meta, rc, err := env.svc.Comments.OpenFile(ctx, alice, second.ID, second.Files[0].ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "trace", string(data))
	assert.Equal(t, "trace.log", meta.Name)

	_, _, err = env.svc.Comments.OpenFile(ctx, carol, second.ID, second.Files[0].ID)
	assertKind(t, err, KindNotFound)
}

func TestCommentService_DeleteComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")
	eng := env.team(t, alice, "Eng", bob, carol)

	task, err := env.svc.Tasks.CreateTask(ctx, alice, TaskInput{Title: "Ship", IsTeamTask: true, AssignedTo: uintPtr(eng.ID)})
	require.NoError(t, err)

	byBob, err := env.svc.Comments.AddComment(ctx, bob, task.ID, "from bob", []Upload{
		{Name: "a.txt", Body: strings.NewReader("a")},
	})
	require.NoError(t, err)
	byCarol, err := env.svc.Comments.AddComment(ctx, carol, task.ID, "from carol", nil)
	require.NoError(t, err)

	// Neither author nor task creator
	err = env.svc.Comments.DeleteComment(ctx, carol, byBob.ID)
	assertKind(t, err, KindForbidden)

	comments, err := env.svc.Comments.ListComments(ctx, carol, task.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 2, "the comment survives a forbidden delete")

	// The author
	require.NoError(t, env.svc.Comments.DeleteComment(ctx, bob, byBob.ID))
	assert.Equal(t, []string{byBob.Files[0].Handle}, env.cleaner.Handles())

	// The task creator
	require.NoError(t, env.svc.Comments.DeleteComment(ctx, alice, byCarol.ID))

	comments, err = env.svc.Comments.ListComments(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	err = env.svc.Comments.DeleteComment(ctx, alice, byCarol.ID)
	assertKind(t, err, KindNotFound)
}
