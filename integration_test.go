package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Seednode/typerace/race"
)

func waitEvent(t *testing.T, c *race.Client, want string) any {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-c.Events():
			if !ok {
				t.Fatal("event channel closed")
			}
			switch m := msg.(type) {
			case *race.PlayersListMessage:
				if want == race.TypePlayersList {
					return m
				}
			case *race.NewPlayerMessage:
				if want == race.TypeNewPlayer {
					return m
				}
			case *race.GameStartMessage:
				if want == race.TypeGameStart {
					return m
				}
			case *race.ProgressUpdateMessage:
				if want == race.TypeProgressUpdate {
					return m
				}
			case *race.PlayerFinishedMessage:
				if want == race.TypePlayerFinished {
					return m
				}
			case *race.GameOverMessage:
				if want == race.TypeGameOver {
					return m
				}
			case *race.ErrorMessage:
				if want == race.TypeError {
					return m
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestFullRaceOverWebsocket(t *testing.T) {
	cfg := &Config{}
	errs := make(chan error, 64)

	srv := httptest.NewServer(newMux(cfg, errs))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, err := race.Dial(ctx, srv.URL, "testroom", "alice")
	if err != nil {
		t.Fatal(err)
	}
	defer alice.Close()
	waitEvent(t, alice, race.TypePlayersList)

	bob, err := race.Dial(ctx, srv.URL, "testroom", "bob")
	if err != nil {
		t.Fatal(err)
	}
	defer bob.Close()
	waitEvent(t, bob, race.TypePlayersList)
	waitEvent(t, alice, race.TypeNewPlayer)

	if err := alice.Start(); err != nil {
		t.Fatal(err)
	}

	start := waitEvent(t, alice, race.TypeGameStart).(*race.GameStartMessage)
	waitEvent(t, bob, race.TypeGameStart)
	if start.Paragraph == "" {
		t.Fatal("race started with an empty paragraph")
	}

	// Bob types half the paragraph, then alice finishes, then bob.
	half := start.Paragraph[:len(start.Paragraph)/2]
	if _, err := bob.Type(half); err != nil {
		t.Fatal(err)
	}
	update := waitEvent(t, alice, race.TypeProgressUpdate).(*race.ProgressUpdateMessage)
	if update.PlayerName != "bob" || update.Progress == 0 {
		t.Fatalf("alice saw %+v", update)
	}

	if _, err := alice.Type(start.Paragraph); err != nil {
		t.Fatal(err)
	}
	finished := waitEvent(t, bob, race.TypePlayerFinished).(*race.PlayerFinishedMessage)
	if finished.PlayerName != "alice" || finished.Rank != 1 {
		t.Fatalf("bob saw finish %+v", finished)
	}

	if _, err := bob.Type(start.Paragraph); err != nil {
		t.Fatal(err)
	}

	over := waitEvent(t, alice, race.TypeGameOver).(*race.GameOverMessage)
	want := []race.RankEntry{
		{Name: "alice", Rank: 1},
		{Name: "bob", Rank: 2},
	}
	if len(over.Rankings) != 2 || over.Rankings[0] != want[0] || over.Rankings[1] != want[1] {
		t.Fatalf("rankings = %v, want %v", over.Rankings, want)
	}

	waitEvent(t, bob, race.TypeGameOver)
	view := bob.View()
	if view.State != race.StateFinished {
		t.Fatalf("bob's view state = %s, want finished", view.State)
	}
	if !view.InputLocked() {
		t.Fatal("bob's input not locked after the race")
	}

	// Back to the lobby for a rematch.
	if err := bob.PlayAgain(); err != nil {
		t.Fatal(err)
	}
	roster := waitEvent(t, alice, race.TypePlayersList).(*race.PlayersListMessage)
	if roster.GameStarted {
		t.Fatal("room still racing after play_again")
	}
}

func TestDuplicateNameOverWebsocket(t *testing.T) {
	cfg := &Config{}
	errs := make(chan error, 64)

	srv := httptest.NewServer(newMux(cfg, errs))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, err := race.Dial(ctx, srv.URL, "dupes", "alice")
	if err != nil {
		t.Fatal(err)
	}
	defer alice.Close()
	waitEvent(t, alice, race.TypePlayersList)

	imposter, err := race.Dial(ctx, srv.URL, "dupes", "alice")
	if err != nil {
		t.Fatal(err)
	}
	defer imposter.Close()

	errMsg := waitEvent(t, imposter, race.TypeError).(*race.ErrorMessage)
	if errMsg.Message != errDuplicateName.Error() {
		t.Fatalf("imposter got %q", errMsg.Message)
	}

	select {
	case <-imposter.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("imposter connection was not closed")
	}
}
