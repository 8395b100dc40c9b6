package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/models"
)

func TestMembershipEngine_CreateTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")

	team, err := env.svc.Teams.CreateTeam(ctx, alice, "  Eng  ")
	require.NoError(t, err)
	assert.Equal(t, "Eng", team.Name)
	assert.Equal(t, alice.ID, team.CreatedByID)
	require.Len(t, team.Members, 1, "the creator is the only member")
	assert.Equal(t, alice.ID, team.Members[0].UserID)
	assert.True(t, team.Members[0].IsVerified, "the creator is verified from the start")

	_, err = env.svc.Teams.CreateTeam(ctx, alice, "Eng")
	assertKind(t, err, KindConflict, "same name for the same creator")

	_, err = env.svc.Teams.CreateTeam(ctx, alice, "   ")
	assertKind(t, err, KindInvalidInput, "blank name")

	bob := env.user(t, "bob")
	_, err = env.svc.Teams.CreateTeam(ctx, bob, "Eng")
	assert.NoError(t, err, "another creator may reuse the name")
}

func TestMembershipEngine_CreateTeamCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")

	for _, name := range []string{"one", "two", "three"} {
		_, err := env.svc.Teams.CreateTeam(ctx, alice, name)
		require.NoError(t, err)
	}
	_, err := env.svc.Teams.CreateTeam(ctx, alice, "four")
	assertKind(t, err, KindLimitExceeded)

	teams, err := env.svc.Teams.GetMyTeams(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, teams, 3)

	// Deleting one frees a slot
	require.NoError(t, env.svc.Teams.DeleteTeam(ctx, alice, teams[0].ID))
	_, err = env.svc.Teams.CreateTeam(ctx, alice, "four")
	assert.NoError(t, err)
}

func TestMembershipEngine_CreateTeamCapConcurrent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	names := []string{"a", "b", "c", "d", "e", "f"}
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = env.svc.Teams.CreateTeam(context.Background(), alice, name)
		}(i, name)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assertKind(t, err, KindLimitExceeded)
	}
	assert.Equal(t, DefaultMaxTeamsPerCreator, created)

	var owned int64
	require.NoError(t, env.db.Model(&models.Team{}).Where("created_by_id = ?", alice.ID).Count(&owned).Error)
	assert.EqualValues(t, DefaultMaxTeamsPerCreator, owned)
}

func TestMembershipEngine_InvitationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	team, err := env.svc.Teams.CreateTeam(ctx, alice, "Eng")
	require.NoError(t, err)

	// Only the leader can invite
	_, err = env.svc.Teams.AddMember(ctx, bob, team.ID, carol.Email)
	assertKind(t, err, KindForbidden)

	_, err = env.svc.Teams.AddMember(ctx, alice, team.ID+100, bob.Email)
	assertKind(t, err, KindNotFound, "missing team")

	_, err = env.svc.Teams.AddMember(ctx, alice, team.ID, "nobody@example.com")
	assertKind(t, err, KindNotFound, "unknown email")

	_, err = env.svc.Teams.AddMember(ctx, alice, team.ID, "not-an-email")
	assertKind(t, err, KindInvalidInput)

	team, err = env.svc.Teams.AddMember(ctx, alice, team.ID, "BOB@example.com")
	require.NoError(t, err)
	require.Len(t, team.Members, 2)
	assert.Equal(t, bob.ID, team.Members[1].UserID)
	assert.False(t, team.Members[1].IsVerified, "invitations start pending")

	_, err = env.svc.Teams.AddMember(ctx, alice, team.ID, bob.Email)
	assertKind(t, err, KindConflict, "duplicate invite")

	_, err = env.svc.Teams.AddMember(ctx, alice, team.ID, alice.Email)
	assertKind(t, err, KindConflict, "the leader is already a member")

	invitations, err := env.svc.Teams.GetMyInvitations(ctx, bob)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, team.ID, invitations[0].ID)

	mine, err := env.svc.Teams.GetMyTeams(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, mine, "pending membership is not a team of the user")

	_, err = env.svc.Teams.GetTeam(ctx, bob, team.ID)
	assertKind(t, err, KindNotFound, "pending members cannot read the team")

	_, err = env.svc.Teams.AcceptInvitation(ctx, carol, team.ID)
	assertKind(t, err, KindNotFound, "no invitation to accept")

	team, err = env.svc.Teams.AcceptInvitation(ctx, bob, team.ID)
	require.NoError(t, err)
	assert.True(t, team.HasVerifiedMember(bob.ID))

	_, err = env.svc.Teams.AcceptInvitation(ctx, bob, team.ID)
	assertKind(t, err, KindNotFound, "accepting twice")

	err = env.svc.Teams.RejectInvitation(ctx, bob, team.ID)
	assertKind(t, err, KindNotFound, "verified members have nothing to reject")

	invitations, err = env.svc.Teams.GetMyInvitations(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, invitations)

	mine, err = env.svc.Teams.GetMyTeams(ctx, bob)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	got, err := env.svc.Teams.GetTeam(ctx, bob, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.View().CreatedBy.Username)
}

func TestMembershipEngine_RejectInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	team, err := env.svc.Teams.CreateTeam(ctx, alice, "Eng")
	require.NoError(t, err)
	_, err = env.svc.Teams.AddMember(ctx, alice, team.ID, bob.Email)
	require.NoError(t, err)

	require.NoError(t, env.svc.Teams.RejectInvitation(ctx, bob, team.ID))

	invitations, err := env.svc.Teams.GetMyInvitations(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, invitations)

	err = env.svc.Teams.RejectInvitation(ctx, bob, team.ID)
	assertKind(t, err, KindNotFound, "rejecting twice")

	// A rejected user can be invited again
	_, err = env.svc.Teams.AddMember(ctx, alice, team.ID, bob.Email)
	assert.NoError(t, err)
}

func TestMembershipEngine_RemoveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	team := env.team(t, alice, "Eng", bob)
	_, err := env.svc.Teams.AddMember(ctx, alice, team.ID, carol.Email)
	require.NoError(t, err)

	_, err = env.svc.Teams.RemoveMember(ctx, bob, team.ID, carol.ID)
	assertKind(t, err, KindForbidden, "non leader")

	_, err = env.svc.Teams.RemoveMember(ctx, alice, team.ID, alice.ID)
	assertKind(t, err, KindInvalidOperation, "the leader cannot remove themself")

	// Revoking a pending invite
	team, err = env.svc.Teams.RemoveMember(ctx, alice, team.ID, carol.ID)
	require.NoError(t, err)
	assert.Len(t, team.Members, 2)

	team, err = env.svc.Teams.RemoveMember(ctx, alice, team.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, team.Members, 1)
	assert.Equal(t, alice.ID, team.Members[0].UserID, "the leader stays")

	_, err = env.svc.Teams.RemoveMember(ctx, alice, team.ID, bob.ID)
	assertKind(t, err, KindNotFound)

	ok, err := env.svc.Visibility.CanAccessTeam(ctx, bob.ID, team.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMembershipEngine_LeaveTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	team := env.team(t, alice, "Eng", bob)

	err := env.svc.Teams.LeaveTeam(ctx, alice, team.ID)
	assertKind(t, err, KindInvalidOperation)

	require.NoError(t, env.svc.Teams.LeaveTeam(ctx, bob, team.ID))
	err = env.svc.Teams.LeaveTeam(ctx, bob, team.ID)
	assertKind(t, err, KindNotFound)
}

func TestMembershipEngine_DeleteTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	team := env.team(t, alice, "Eng", bob)

	task, err := env.svc.Tasks.CreateTask(ctx, bob, TaskInput{Title: "Ship", IsTeamTask: true, AssignedTo: uintPtr(team.ID)})
	require.NoError(t, err)

	err = env.svc.Teams.DeleteTeam(ctx, bob, team.ID)
	assertKind(t, err, KindForbidden)

	require.NoError(t, env.svc.Teams.DeleteTeam(ctx, alice, team.ID))

	_, err = env.svc.Teams.GetTeam(ctx, alice, team.ID)
	assertKind(t, err, KindNotFound)

	var members int64
	require.NoError(t, env.db.Model(&models.TeamMember{}).Where("team_id = ?", team.ID).Count(&members).Error)
	assert.Zero(t, members)

	// The task falls back to a personal task of its creator
	got, err := env.svc.Tasks.GetTask(ctx, bob, task.ID)
	require.NoError(t, err)
	assert.False(t, got.IsTeamTask)
	assert.Nil(t, got.AssignedTo)

	_, err = env.svc.Tasks.GetTask(ctx, alice, task.ID)
	assertKind(t, err, KindNotFound)
}

func TestMembershipEngine_ConcurrentInvites(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	team, err := env.svc.Teams.CreateTeam(context.Background(), alice, "Eng")
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Teams.AddMember(context.Background(), alice, team.ID, bob.Email)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assertKind(t, err, KindConflict)
	}
	assert.Equal(t, 1, succeeded)

	var entries int64
	require.NoError(t, env.db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, bob.ID).
		Count(&entries).Error)
	assert.EqualValues(t, 1, entries)
}
