package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
)

type fakeRecomputer struct {
	err   error
	calls int

	lastUser    uuid.UUID
	lastAccount uuid.UUID
}

func (f *fakeRecomputer) Recompute(_ context.Context, userID, accountID uuid.UUID) (decimal.Decimal, error) {
	f.calls++
	f.lastUser = userID
	f.lastAccount = accountID
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.NewFromInt(42), nil
}

func notice(t *testing.T, userID, accountID uuid.UUID) []byte {
	t.Helper()
	data, err := json.Marshal(MutationNotice{AccountID: accountID, UserID: userID})
	if err != nil {
		t.Fatalf("marshal notice: %v", err)
	}
	return data
}

func TestHandleNotice_RecomputesAndAcks(t *testing.T) {
	eng := &fakeRecomputer{}
	sub := NewSubscriber(nil, eng, zerolog.Nop())

	userID, accountID := uuid.New(), uuid.New()
	ack := sub.handleNotice(context.Background(), SubjectTransactionRecorded, notice(t, userID, accountID))

	if !ack {
		t.Error("expected ack on successful recompute")
	}
	if eng.calls != 1 {
		t.Errorf("expected 1 recompute call, got %d", eng.calls)
	}
	if eng.lastUser != userID || eng.lastAccount != accountID {
		t.Errorf("recompute called with wrong ids: user=%s account=%s", eng.lastUser, eng.lastAccount)
	}
}

func TestHandleNotice_MalformedPayloadIsDropped(t *testing.T) {
	eng := &fakeRecomputer{}
	sub := NewSubscriber(nil, eng, zerolog.Nop())

	ack := sub.handleNotice(context.Background(), SubjectTradeClosed, []byte("not json"))

	if !ack {
		t.Error("malformed notices must be acked so they are not redelivered")
	}
	if eng.calls != 0 {
		t.Errorf("expected no recompute calls, got %d", eng.calls)
	}
}

func TestHandleNotice_MissingIDsAreDropped(t *testing.T) {
	eng := &fakeRecomputer{}
	sub := NewSubscriber(nil, eng, zerolog.Nop())

	ack := sub.handleNotice(context.Background(), SubjectTradeClosed, notice(t, uuid.Nil, uuid.New()))

	if !ack {
		t.Error("notices without ids must be acked")
	}
	if eng.calls != 0 {
		t.Errorf("expected no recompute calls, got %d", eng.calls)
	}
}

func TestHandleNotice_UnknownAccountIsDropped(t *testing.T) {
	eng := &fakeRecomputer{err: fmt.Errorf("account: %w", domain.ErrNotFound)}
	sub := NewSubscriber(nil, eng, zerolog.Nop())

	ack := sub.handleNotice(context.Background(), SubjectTransactionRecorded, notice(t, uuid.New(), uuid.New()))

	if !ack {
		t.Error("notices for deleted accounts must be acked, not retried")
	}
}

func TestHandleNotice_TransientFailureIsNaked(t *testing.T) {
	eng := &fakeRecomputer{err: errors.New("store unavailable")}
	sub := NewSubscriber(nil, eng, zerolog.Nop())

	ack := sub.handleNotice(context.Background(), SubjectTransactionRecorded, notice(t, uuid.New(), uuid.New()))

	if ack {
		t.Error("transient failures must be naked for redelivery")
	}
}
