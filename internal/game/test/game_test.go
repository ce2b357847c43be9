package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	game "github.com/anuragn091/memory-game-cautio/internal/game"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
	store "github.com/anuragn091/memory-game-cautio/internal/store"
)

func testController(icons []string) (*game.Controller, store.Store) {
	mem := store.NewMemory()
	cfg := game.Config{
		Icons:         icons,
		MatchDelay:    10 * time.Millisecond,
		MismatchDelay: 20 * time.Millisecond,
		WinDwell:      50 * time.Millisecond,
	}
	return game.NewWithRand(mem, cfg, rand.New(rand.NewSource(1))), mem
}

func loggedInController(t *testing.T, icons []string) (*game.Controller, store.Store) {
	t.Helper()
	ctrl, mem := testController(icons)
	if _, err := ctrl.Login(context.Background(), "Ann", "a@x.com"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return ctrl, mem
}

// waitFor polls the condition until it holds or the deadline passes; the
// controller resolves matches on deferred callbacks, so tests wait instead
// of assuming exact timing.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// pairIndices returns two indices sharing an icon and one index with a
// different icon.
func pairIndices(t *testing.T, tiles []models.Tile) (first, second, other int) {
	t.Helper()
	byIcon := make(map[string][]int)
	for i, tile := range tiles {
		byIcon[tile.Icon] = append(byIcon[tile.Icon], i)
	}
	for icon, idx := range byIcon {
		if len(idx) == 2 {
			for otherIcon, otherIdx := range byIcon {
				if otherIcon != icon {
					return idx[0], idx[1], otherIdx[0]
				}
			}
		}
	}
	t.Fatal("Board has no usable icon pair")
	return 0, 0, 0
}

func TestLoginCreatesProfile(t *testing.T) {
	ctrl, mem := testController([]string{"A", "B"})
	ctx := context.Background()

	user, err := ctrl.Login(ctx, "Ann", "a@x.com")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.Name != "Ann" || user.Email != "a@x.com" || len(user.Sessions) != 0 {
		t.Errorf("New profile mismatch: %+v", user)
	}

	stored, _ := mem.GetProfile(ctx)
	if stored == nil || stored.Email != "a@x.com" {
		t.Error("New profile should be persisted immediately")
	}
	if n, _ := mem.NextGameNumber(ctx, "a@x.com"); n != 1 {
		t.Errorf("Fresh user NextGameNumber = %d, want 1", n)
	}
	if snap := ctrl.Snapshot(); snap.View != constants.ViewDashboard {
		t.Errorf("Login should land on dashboard, got %s", snap.View)
	}
}

func TestLoginExistingProfileIgnoresName(t *testing.T) {
	ctrl, mem := testController([]string{"A", "B"})
	ctx := context.Background()

	sessions := []models.GameSession{{GameNumber: 1, Status: constants.StatusCompleted}}
	if err := mem.SaveProfile(ctx, &models.UserData{Name: "Ann", Email: "a@x.com", Sessions: sessions}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	user, err := ctrl.Login(ctx, "Different Name", "a@x.com")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.Name != "Ann" || len(user.Sessions) != 1 {
		t.Errorf("Existing profile should be loaded as stored, got %+v", user)
	}
}

func TestStartGameRequiresLogin(t *testing.T) {
	ctrl, mem := testController([]string{"A", "B"})

	if err := ctrl.StartGame(context.Background()); err == nil || err.Error() != constants.ErrorCodeNotLoggedIn {
		t.Errorf("StartGame without a user should be rejected, got %v", err)
	}
	if cur, _ := mem.GetCurrentSession(context.Background()); cur != nil {
		t.Error("No session should be persisted without a user")
	}
}

func TestStartGame(t *testing.T) {
	ctrl, mem := loggedInController(t, []string{"A", "B"})
	ctx := context.Background()

	if err := ctrl.StartGame(ctx); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.View != constants.ViewGame {
		t.Errorf("View = %s, want game", snap.View)
	}
	if snap.GameNumber != 1 {
		t.Errorf("GameNumber = %d, want 1", snap.GameNumber)
	}
	if len(snap.Board) != 4 {
		t.Errorf("Expected 4 tiles for 2 icons, got %d", len(snap.Board))
	}
	if !snap.Timer.Active || snap.Timer.Elapsed != 0 {
		t.Errorf("Timer should be active at 0, got %+v", snap.Timer)
	}

	current, _ := mem.GetCurrentSession(ctx)
	if current == nil || current.GameNumber != 1 || current.Status != constants.StatusInProgress || current.BoardSize != 2 {
		t.Errorf("Persisted current session mismatch: %+v", current)
	}
	user, _ := mem.GetProfile(ctx)
	if len(user.Sessions) != 0 {
		t.Error("In-flight session must not be in the profile list yet")
	}
}

func TestMatchFlow(t *testing.T) {
	ctrl, _ := loggedInController(t, []string{"A", "B"})
	if err := ctrl.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	first, second, _ := pairIndices(t, ctrl.Snapshot().Board)
	ctrl.TileClick(first)

	snap := ctrl.Snapshot()
	if !snap.Board[first].IsFlipped || len(snap.Selected) != 1 {
		t.Errorf("First click should flip and select, got %+v", snap.Selected)
	}

	ctrl.TileClick(second)
	if snap = ctrl.Snapshot(); !snap.Checking {
		t.Error("Second selection should enter checking")
	}

	waitFor(t, func() bool {
		s := ctrl.Snapshot()
		return len(s.Board) > 0 && s.Board[first].IsMatched && s.Board[second].IsMatched
	}, "Matching pair never resolved")

	snap = ctrl.Snapshot()
	if snap.Checking || len(snap.Selected) != 0 {
		t.Errorf("Resolution should clear checking and selection, got checking=%v selected=%v", snap.Checking, snap.Selected)
	}
}

func TestMismatchFlow(t *testing.T) {
	ctrl, _ := loggedInController(t, []string{"A", "B"})
	if err := ctrl.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	first, _, other := pairIndices(t, ctrl.Snapshot().Board)
	ctrl.TileClick(first)
	ctrl.TileClick(other)

	if snap := ctrl.Snapshot(); !snap.Checking {
		t.Error("Mismatched selection should enter checking")
	}

	waitFor(t, func() bool {
		s := ctrl.Snapshot()
		return !s.Checking && !s.Board[first].IsFlipped && !s.Board[other].IsFlipped
	}, "Mismatched pair never flipped back")

	snap := ctrl.Snapshot()
	if snap.Board[first].IsMatched || snap.Board[other].IsMatched {
		t.Error("Mismatched tiles must not be marked matched")
	}
	if len(snap.Selected) != 0 {
		t.Errorf("Selection should be cleared, got %v", snap.Selected)
	}
}

func TestClicksIgnoredDuringChecking(t *testing.T) {
	ctrl, _ := loggedInController(t, []string{"A", "B"})
	if err := ctrl.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	first, second, other := pairIndices(t, ctrl.Snapshot().Board)
	ctrl.TileClick(first)
	ctrl.TileClick(other)

	// Board is checking now; this click must be a silent no-op.
	ctrl.TileClick(second)
	if snap := ctrl.Snapshot(); snap.Board[second].IsFlipped {
		t.Error("Click during checking should be ignored")
	}
}

func TestClickEdgeCasesIgnored(t *testing.T) {
	ctrl, _ := loggedInController(t, []string{"A", "B"})
	if err := ctrl.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	ctrl.TileClick(-1)
	ctrl.TileClick(99)
	if snap := ctrl.Snapshot(); len(snap.Selected) != 0 {
		t.Errorf("Out-of-range clicks should be ignored, got %v", snap.Selected)
	}

	ctrl.TileClick(0)
	ctrl.TileClick(0)
	if snap := ctrl.Snapshot(); len(snap.Selected) != 1 {
		t.Errorf("Re-clicking a flipped tile should be ignored, got %v", snap.Selected)
	}
}

func TestWinRecordsCompletedSessionOnce(t *testing.T) {
	ctrl, mem := loggedInController(t, []string{"A", "B"})
	ctx := context.Background()
	if err := ctrl.StartGame(ctx); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	// Resolve both pairs.
	tiles := ctrl.Snapshot().Board
	byIcon := make(map[string][]int)
	for i, tile := range tiles {
		byIcon[tile.Icon] = append(byIcon[tile.Icon], i)
	}
	for _, idx := range byIcon {
		ctrl.TileClick(idx[0])
		ctrl.TileClick(idx[1])
		waitFor(t, func() bool {
			s := ctrl.Snapshot()
			return len(s.Board) == 0 || (s.Board[idx[0]].IsMatched && s.Board[idx[1]].IsMatched)
		}, "Pair never resolved")
	}

	// The win flag holds only for the dwell window before the dashboard
	// returns, so accept either state.
	waitFor(t, func() bool {
		s := ctrl.Snapshot()
		return s.Won || s.View == constants.ViewDashboard
	}, "Win was never detected")

	snap := ctrl.Snapshot()
	if snap.Timer.Active {
		t.Error("Timer must deactivate on win")
	}

	user, _ := mem.GetProfile(ctx)
	if len(user.Sessions) != 1 {
		t.Fatalf("Expected exactly one recorded session, got %d", len(user.Sessions))
	}
	got := user.Sessions[0]
	if got.GameNumber != 1 || got.Status != constants.StatusCompleted || got.Duration < 0 {
		t.Errorf("Recorded session mismatch: %+v", got)
	}
	if cur, _ := mem.GetCurrentSession(ctx); cur != nil {
		t.Error("Current session should be cleared on win")
	}

	// After the dwell the controller returns to the dashboard with the
	// refreshed profile.
	waitFor(t, func() bool { return ctrl.Snapshot().View == constants.ViewDashboard }, "Never returned to dashboard after win")
	snap = ctrl.Snapshot()
	if snap.User == nil || snap.User.Stats.Completed != 1 || snap.User.Stats.TotalGames != 1 {
		t.Errorf("Dashboard stats not refreshed: %+v", snap.User)
	}
	if len(snap.Board) != 0 || snap.Won {
		t.Error("Board and win flag should be cleared on dashboard return")
	}
}

func TestStopGameFlow(t *testing.T) {
	ctrl, mem := loggedInController(t, []string{"A", "B"})
	ctx := context.Background()
	if err := ctrl.StartGame(ctx); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	ctrl.RequestStop()
	if snap := ctrl.Snapshot(); !snap.StopPrompt {
		t.Error("RequestStop should raise the confirmation prompt")
	}

	ctrl.CancelStop()
	snap := ctrl.Snapshot()
	if snap.StopPrompt {
		t.Error("CancelStop should clear the prompt")
	}
	if snap.View != constants.ViewGame || !snap.Timer.Active {
		t.Error("Cancelling must leave the game running")
	}

	ctrl.RequestStop()
	ctrl.ConfirmStop(ctx)

	snap = ctrl.Snapshot()
	if snap.View != constants.ViewDashboard {
		t.Errorf("ConfirmStop should return to dashboard immediately, got %s", snap.View)
	}
	if snap.Timer.Active {
		t.Error("Timer must deactivate on stop")
	}

	user, _ := mem.GetProfile(ctx)
	if len(user.Sessions) != 1 {
		t.Fatalf("Expected 1 recorded session, got %d", len(user.Sessions))
	}
	got := user.Sessions[0]
	if got.Status != constants.StatusLost || got.Duration < 0 {
		t.Errorf("Stopped session should be recorded as lost, got %+v", got)
	}
	if cur, _ := mem.GetCurrentSession(ctx); cur != nil {
		t.Error("Current session should be cleared on stop")
	}
}

func TestSessionNumberingAcrossGames(t *testing.T) {
	ctrl, mem := loggedInController(t, []string{"A", "B"})
	ctx := context.Background()

	for want := 1; want <= 2; want++ {
		if err := ctrl.StartGame(ctx); err != nil {
			t.Fatalf("StartGame failed: %v", err)
		}
		if snap := ctrl.Snapshot(); snap.GameNumber != want {
			t.Errorf("GameNumber = %d, want %d", snap.GameNumber, want)
		}
		ctrl.RequestStop()
		ctrl.ConfirmStop(ctx)
	}

	user, _ := mem.GetProfile(ctx)
	if len(user.Sessions) != 2 || user.Sessions[0].GameNumber != 1 || user.Sessions[1].GameNumber != 2 {
		t.Errorf("Session numbering not contiguous: %+v", user.Sessions)
	}
	if n, _ := mem.NextGameNumber(ctx, "a@x.com"); n != 3 {
		t.Errorf("NextGameNumber = %d, want 3", n)
	}
}

func TestLogoutDiscardsInFlightSession(t *testing.T) {
	ctrl, mem := loggedInController(t, []string{"A", "B"})
	ctx := context.Background()
	if err := ctrl.StartGame(ctx); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	ctrl.Logout(ctx)

	snap := ctrl.Snapshot()
	if snap.View != constants.ViewLogin || snap.User != nil || len(snap.Board) != 0 || snap.Timer.Active {
		t.Errorf("Logout should reset to login state, got %+v", snap)
	}
	if cur, _ := mem.GetCurrentSession(ctx); cur != nil {
		t.Error("Logout should discard the current session marker")
	}
	user, _ := mem.GetProfile(ctx)
	if len(user.Sessions) != 0 {
		t.Error("Abandoned session must not be recorded as lost")
	}
}

func TestStaleDeferralCannotTouchNewGame(t *testing.T) {
	ctrl, _ := loggedInController(t, []string{"A", "B"})
	ctx := context.Background()
	if err := ctrl.StartGame(ctx); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	first, _, other := pairIndices(t, ctrl.Snapshot().Board)
	ctrl.TileClick(first)
	ctrl.TileClick(other)

	// Abort mid-check and start over; the pending flip-back belongs to the
	// discarded game.
	ctrl.RequestStop()
	ctrl.ConfirmStop(ctx)
	if err := ctrl.StartGame(ctx); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	ctrl.TileClick(first)
	time.Sleep(100 * time.Millisecond)

	snap := ctrl.Snapshot()
	if !snap.Board[first].IsFlipped {
		t.Error("Stale flip-back mutated the new game's board")
	}
	if len(snap.Selected) != 1 {
		t.Errorf("Stale deferral cleared the new game's selection: %v", snap.Selected)
	}
}

func TestSnapshotProfileViewIsReversed(t *testing.T) {
	ctrl, mem := testController([]string{"A", "B"})
	ctx := context.Background()

	sessions := []models.GameSession{
		{GameNumber: 1, Status: constants.StatusCompleted},
		{GameNumber: 2, Status: constants.StatusLost},
		{GameNumber: 3, Status: constants.StatusCompleted},
	}
	if err := mem.SaveProfile(ctx, &models.UserData{Name: "Ann", Email: "a@x.com", Sessions: sessions}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if _, err := ctrl.Login(ctx, "Ann", "a@x.com"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.User == nil {
		t.Fatal("Snapshot should carry the profile view")
	}
	if snap.User.Sessions[0].GameNumber != 3 || snap.User.Sessions[2].GameNumber != 1 {
		t.Errorf("Session log should be reverse-chronological: %+v", snap.User.Sessions)
	}
	if snap.User.Stats.TotalGames != 3 || snap.User.Stats.Completed != 2 || snap.User.Stats.Lost != 1 {
		t.Errorf("Stats mismatch: %+v", snap.User.Stats)
	}
}
