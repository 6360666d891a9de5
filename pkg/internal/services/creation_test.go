package services

import (
	"context"
	"testing"
	"time"

	"github.com/pollbridge/pollbridge/pkg/internal/gateway"
	"github.com/pollbridge/pollbridge/pkg/internal/models"
)

func TestValidateDraft(t *testing.T) {
	tests := []struct {
		name    string
		draft   PollDraft
		wantErr bool
	}{
		{
			name:  "valid draft",
			draft: PollDraft{Title: "Best color?", Options: []string{"Red", "Green"}, DurationDays: 3},
		},
		{
			name:    "blank title",
			draft:   PollDraft{Title: "   ", Options: []string{"Red", "Green"}, DurationDays: 3},
			wantErr: true,
		},
		{
			name:    "single option",
			draft:   PollDraft{Title: "Best color?", Options: []string{"Red"}, DurationDays: 3},
			wantErr: true,
		},
		{
			name:    "blank option",
			draft:   PollDraft{Title: "Best color?", Options: []string{"Red", "  "}, DurationDays: 3},
			wantErr: true,
		},
		{
			name:    "zero duration",
			draft:   PollDraft{Title: "Best color?", Options: []string{"Red", "Green"}, DurationDays: 0},
			wantErr: true,
		},
		{
			name:    "negative duration",
			draft:   PollDraft{Title: "Best color?", Options: []string{"Red", "Green"}, DurationDays: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateDraft(tt.draft); (err != nil) != tt.wantErr {
				t.Errorf("ValidateDraft() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreatePollRejectsInvalidDraftWithoutGatewayCall(t *testing.T) {
	ledger := newFakeLedger()
	setupTestBoard(t, ledger)

	draft := PollDraft{Title: "", Options: []string{"Red"}, DurationDays: 0}
	if _, err := CreatePoll(context.Background(), "0xbob", draft); err == nil {
		t.Fatal("expected validation to fail")
	}
	if got := ledger.writes(); len(got) != 0 {
		t.Errorf("invalid drafts must never reach the gateway, saw %v", got)
	}
}

func TestCreatePollAppendsProvisionalPoll(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(4, "0xalice", time.Hour)}
	ledger.count = 4
	refreshedBoard(t, ledger)

	draft := PollDraft{Title: "Best color?", Options: []string{"Red", "Green"}, DurationDays: 1}
	poll, err := CreatePoll(context.Background(), "0xbob", draft)
	if err != nil {
		t.Fatalf("CreatePoll() failed: %v", err)
	}

	if poll.ID != 5 {
		t.Errorf("provisional id = %d, want lastKnownId+1 = 5", poll.ID)
	}
	if !poll.Provisional {
		t.Error("a fresh creation should be marked provisional")
	}
	if want := frozenNow.Add(24 * time.Hour); !poll.EndAt.Equal(want) {
		t.Errorf("EndAt = %v, want %v", poll.EndAt, want)
	}

	views := ListPollViews(context.Background(), "0xbob")
	if len(views) != 2 {
		t.Fatalf("expected 2 polls, got %d", len(views))
	}
	if views[1].Status != models.PollStatusActive || views[1].VotesCount != 0 {
		t.Error("a fresh poll should render active with zero votes")
	}

	backlog := DrainNotifications("0xbob")
	if len(backlog) != 1 || backlog[0].Level != NotifySuccess {
		t.Errorf("expected one success notification, got %+v", backlog)
	}
}

func TestCreatePollFailureLeavesCollectionUntouched(t *testing.T) {
	ledger := newFakeLedger()
	ledger.polls = []models.Poll{testPoll(4, "0xalice", time.Hour)}
	ledger.count = 4
	ledger.createErr = &gateway.Error{Op: gateway.OpCreateNewPoll, Short: "user rejected", Message: "user rejected the request"}
	refreshedBoard(t, ledger)

	draft := PollDraft{Title: "Best color?", Options: []string{"Red", "Green"}, DurationDays: 1}
	if _, err := CreatePoll(context.Background(), "0xbob", draft); err == nil {
		t.Fatal("expected the creation to fail")
	}

	if views := ListPollViews(context.Background(), "0xbob"); len(views) != 1 {
		t.Error("a failed creation must not mutate the collection")
	}

	backlog := DrainNotifications("0xbob")
	if len(backlog) != 1 || backlog[0].Level != NotifyError {
		t.Errorf("expected one failure notification, got %+v", backlog)
	}
}
