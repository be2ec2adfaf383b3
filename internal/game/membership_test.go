package game

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVisitCreatesRoomAndTracksViewer(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()

	snap, err := env.engine.Visit(ctx, "abc123", "viewer-1")
	if err != nil {
		t.Fatalf("visit: %v", err)
	}
	if snap.Code != "ABC123" || snap.State != StateLobby {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
	if snap.ViewerCount != 1 {
		t.Fatalf("expected 1 viewer, got %d", snap.ViewerCount)
	}
	if _, err := env.engine.Visit(ctx, "ABC123", "viewer-1"); err != nil {
		t.Fatalf("second visit: %v", err)
	}
	if got := len(env.room(t, "ABC123").Viewers); got != 1 {
		t.Fatalf("expected repeated visit to be idempotent, got %d viewers", got)
	}

	if _, err := env.engine.Visit(ctx, "bad", "viewer-2"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
}

func TestJoinPromotesViewerToPlayer(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	if _, err := env.engine.Visit(ctx, "ABC123", "conn-p1"); err != nil {
		t.Fatalf("visit: %v", err)
	}
	res := env.joinPlayer(t, "ABC123", "p1")
	if res.Rejoined || res.Resuming {
		t.Fatalf("unexpected first join result: %#v", res)
	}
	room := env.room(t, "ABC123")
	if len(room.Viewers) != 0 {
		t.Fatalf("expected viewer entry to be replaced by the player, got %d viewers", len(room.Viewers))
	}
	if len(room.Players) != 1 || !room.Players["p1"].Connected {
		t.Fatalf("expected one connected player, got %#v", room.Players)
	}
	if env.events.count(EventRoomUpdate) != 2 {
		t.Fatalf("expected room_update for visit and join, got %d", env.events.count(EventRoomUpdate))
	}
}

func TestRejoinKeepsSingleRecord(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.joinPlayer(t, "ABC123", "p1")
	env.joinPlayer(t, "ABC123", "p2")
	before := len(env.room(t, "ABC123").Players)

	if err := env.engine.Disconnect(ctx, "ABC123", "conn-p2"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	env.joinPlayer(t, "ABC123", "p2")
	if after := len(env.room(t, "ABC123").Players); after != before {
		t.Fatalf("expected %d players after reconnect, got %d", before, after)
	}

	res := env.joinPlayer(t, "ABC123", "p2")
	if !res.Rejoined {
		t.Fatalf("expected second join with the same id to be a rejoin")
	}
	if got := len(env.room(t, "ABC123").Players); got != before {
		t.Fatalf("expected duplicate join to keep %d players, got %d", before, got)
	}
}

func TestDisconnectDuringSessionRetainsPlayer(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.questions.Put("ABC123", testQuiz(3, 20))
	auth := env.joinHost(t, "ABC123")
	env.joinPlayer(t, "ABC123", "p2")
	env.mustStep(t, "start", env.engine.Start(ctx, "ABC123", auth))
	env.mustStep(t, "begin", env.engine.BeginQuestion(ctx, "ABC123", auth))
	if _, err := env.engine.SubmitAnswer(ctx, AnswerRequest{Code: "ABC123", PlayerID: "p2", AnswerID: "a", TimeRemaining: 20}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := env.engine.Disconnect(ctx, "ABC123", "conn-p2"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	player := env.room(t, "ABC123").Players["p2"]
	if player == nil || player.Connected {
		t.Fatalf("expected disconnected player record to be kept, got %#v", player)
	}
	score := player.Score

	res, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "p2", ConnectionID: "conn-p2-new", Name: "p2"})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if !res.Rejoined || !res.Resuming || res.ResumeIndex != 0 {
		t.Fatalf("unexpected rejoin result: %#v", res)
	}
	if res.Player.Score != score {
		t.Fatalf("expected score %d restored, got %d", score, res.Player.Score)
	}

	// The old socket closing late must not knock the fresh one offline.
	if err := env.engine.Disconnect(ctx, "ABC123", "conn-p2"); err != nil {
		t.Fatalf("stale disconnect: %v", err)
	}
	if !env.room(t, "ABC123").Players["p2"].Connected {
		t.Fatalf("stale connection drop marked the player offline")
	}
}

func TestLateJoinerResumesAtCurrentQuestion(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.questions.Put("ABC123", testQuiz(4, 20))
	auth := env.joinHost(t, "ABC123")
	env.joinPlayer(t, "ABC123", "p2")

	env.mustStep(t, "start", env.engine.Start(ctx, "ABC123", auth))
	for i := 0; i < 2; i++ {
		env.mustStep(t, "begin", env.engine.BeginQuestion(ctx, "ABC123", auth))
		env.mustStep(t, "reveal", env.engine.Reveal(ctx, "ABC123", auth))
		env.mustStep(t, "next", env.engine.Next(ctx, "ABC123", auth))
	}
	env.mustStep(t, "begin", env.engine.BeginQuestion(ctx, "ABC123", auth))

	res := env.joinPlayer(t, "ABC123", "late")
	if !res.Resuming || res.ResumeIndex != 2 {
		t.Fatalf("expected late joiner to resume at 2, got %#v", res)
	}
	if res.Snapshot.CurrentQuestionIndex != 2 || res.Snapshot.State != StateQuestion {
		t.Fatalf("unexpected snapshot for late joiner: %#v", res.Snapshot)
	}
}

func TestHostClaimedOnce(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	auth := env.joinHost(t, "ABC123")

	res, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "p2", ConnectionID: "conn-p2", Name: "p2", ClaimHost: true})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if res.HostToken != "" || res.Player.IsHost {
		t.Fatalf("expected second claimant to join as a player, got %#v", res)
	}
	room := env.room(t, "ABC123")
	if room.HostID != "host" {
		t.Fatalf("expected host to stay %q, got %q", "host", room.HostID)
	}

	again, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "host", ConnectionID: "conn-host-2", HostToken: auth.Token})
	if err != nil {
		t.Fatalf("host rejoin: %v", err)
	}
	if again.HostToken != auth.Token {
		t.Fatalf("expected host token returned to the proven host")
	}
	if _, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "host", ConnectionID: "conn-host-3"}); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected host rejoin without token to be refused, got %v", err)
	}
	if room := env.room(t, "ABC123"); room.Players["host"].ConnectionID != "conn-host-2" {
		t.Fatalf("host connection rebound without proof: %q", room.Players["host"].ConnectionID)
	}
}

func TestHostSeatCannotBeTakenWithoutToken(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.joinHost(t, "ABC123")

	_, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "host", ConnectionID: "conn-evil", Name: "evil"})
	if !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected impersonation to be refused, got %v", err)
	}
	// the impersonating connection never owned the record, so its drop is a no-op
	_ = env.engine.Disconnect(ctx, "ABC123", "conn-evil")

	res, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "evil-p", ConnectionID: "conn-evil", Name: "evil", ClaimHost: true})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.HostToken != "" || res.Player.IsHost {
		t.Fatalf("host seat taken over: %#v", res)
	}
	room := env.room(t, "ABC123")
	if room.HostID != "host" || room.Players["host"].ConnectionID != "conn-host" {
		t.Fatalf("expected original host intact, got host %q on %q", room.HostID, room.Players["host"].ConnectionID)
	}
}

func TestHostSeatSurvivesImpersonationMidSession(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.questions.Put("ABC123", testQuiz(2, 20))
	auth := env.joinHost(t, "ABC123")
	env.joinPlayer(t, "ABC123", "p2")
	env.mustStep(t, "start", env.engine.Start(ctx, "ABC123", auth))

	if _, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "host", ConnectionID: "conn-evil", HostToken: "guess"}); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected wrong token to be refused, got %v", err)
	}
	if env.engine.timers.pending(timerKey("ABC123", timerHost)) {
		t.Fatalf("host abandon timer must not start")
	}
	if room := env.room(t, "ABC123"); !room.Players["host"].Connected || room.Players["host"].ConnectionID != "conn-host" {
		t.Fatalf("expected host record untouched")
	}
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.joinPlayer(t, "ABC123", "p1")

	if err := env.engine.Leave(ctx, "ABC123", "p1"); err != nil {
		t.Fatalf("leave player: %v", err)
	}
	if _, ok, _ := env.store.Get(ctx, "ABC123"); ok {
		t.Fatalf("expected room to be deleted once empty")
	}
	if err := env.engine.Leave(ctx, "ABC123", "p1"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected leave on deleted room to fail with not found, got %v", err)
	}
}

func TestLeaveKeepsRoomWithViewers(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	if _, err := env.engine.Visit(ctx, "ABC123", "viewer-1"); err != nil {
		t.Fatalf("visit: %v", err)
	}
	env.joinPlayer(t, "ABC123", "p1")
	if err := env.engine.Leave(ctx, "ABC123", "p1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	room := env.room(t, "ABC123")
	if len(room.Players) != 0 || len(room.Viewers) != 1 {
		t.Fatalf("expected only the viewer to remain, got %d players %d viewers", len(room.Players), len(room.Viewers))
	}
	if err := env.engine.Leave(ctx, "ABC123", "ghost"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected unknown id to be rejected, got %v", err)
	}
	if err := env.engine.Leave(ctx, "ABC123", "viewer-1"); err != nil {
		t.Fatalf("viewer leave: %v", err)
	}
	if _, ok, _ := env.store.Get(ctx, "ABC123"); ok {
		t.Fatalf("expected room deleted after last viewer left")
	}
}

func TestSetReady(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.joinPlayer(t, "ABC123", "p1")
	if err := env.engine.SetReady(ctx, "ABC123", "p1", true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if !env.room(t, "ABC123").Players["p1"].Ready {
		t.Fatalf("expected player to be ready")
	}
	if err := env.engine.SetReady(ctx, "ABC123", "nobody", true); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
}

func TestHostReturnCancelsAbandonTimer(t *testing.T) {
	opts := testOptions()
	opts.HostReconnectGrace = 50 * time.Millisecond
	env := newTestEnv(t, opts)
	ctx := context.Background()
	env.questions.Put("ABC123", testQuiz(2, 20))
	auth := env.joinHost(t, "ABC123")
	env.joinPlayer(t, "ABC123", "p2")
	env.mustStep(t, "start", env.engine.Start(ctx, "ABC123", auth))

	if err := env.engine.Disconnect(ctx, "ABC123", "conn-host"); err != nil {
		t.Fatalf("host disconnect: %v", err)
	}
	if !env.engine.timers.pending(timerKey("ABC123", timerHost)) {
		t.Fatalf("expected host abandon timer")
	}
	if _, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "host", ConnectionID: "conn-host-2", HostToken: auth.Token}); err != nil {
		t.Fatalf("host rejoin: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if state := env.room(t, "ABC123").State; state != StatePreparing {
		t.Fatalf("expected session to continue after host returned, got %s", state)
	}
}

func TestHostAbandonEndsSession(t *testing.T) {
	opts := testOptions()
	opts.HostReconnectGrace = 20 * time.Millisecond
	env := newTestEnv(t, opts)
	ctx := context.Background()
	env.questions.Put("ABC123", testQuiz(2, 20))
	auth := env.joinHost(t, "ABC123")
	env.joinPlayer(t, "ABC123", "p2")
	env.mustStep(t, "start", env.engine.Start(ctx, "ABC123", auth))
	env.mustStep(t, "begin", env.engine.BeginQuestion(ctx, "ABC123", auth))

	if err := env.engine.Disconnect(ctx, "ABC123", "conn-host"); err != nil {
		t.Fatalf("host disconnect: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		room, ok, _ := env.store.Get(ctx, "ABC123")
		return ok && room.State == StateFinished && room.Finalized
	})
	if _, ok, _ := env.results.LoadResult(ctx, "ABC123"); !ok {
		t.Fatalf("expected result persisted after host abandon")
	}
}

func TestHostLeavingLobbyFreesSeat(t *testing.T) {
	env := newTestEnv(t, testOptions())
	ctx := context.Background()
	env.joinHost(t, "ABC123")
	env.joinPlayer(t, "ABC123", "p2")

	if err := env.engine.Disconnect(ctx, "ABC123", "conn-host"); err != nil {
		t.Fatalf("host disconnect: %v", err)
	}
	if room := env.room(t, "ABC123"); room.HostID != "" || room.HostToken != "" {
		t.Fatalf("expected host seat released, got host %q", room.HostID)
	}
	res, err := env.engine.Join(ctx, JoinRequest{Code: "ABC123", PlayerID: "p2", ConnectionID: "conn-p2", ClaimHost: true, AccountID: "acct-p2"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.HostToken == "" || !res.Player.IsHost {
		t.Fatalf("expected p2 to claim the free seat, got %#v", res)
	}
}
