package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher emits mutation notices. Callers publish after the mutation is
// committed, so a consumer that reads the notice always sees the new rows.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// TransactionRecorded announces a new or changed transaction touching the
// account.
func (p *Publisher) TransactionRecorded(ctx context.Context, userID, accountID uuid.UUID) error {
	return p.publish(ctx, SubjectTransactionRecorded, userID, accountID)
}

// TradeClosed announces that a trade on the account settled.
func (p *Publisher) TradeClosed(ctx context.Context, userID, accountID uuid.UUID) error {
	return p.publish(ctx, SubjectTradeClosed, userID, accountID)
}

func (p *Publisher) publish(ctx context.Context, subject string, userID, accountID uuid.UUID) error {
	data, err := json.Marshal(MutationNotice{AccountID: accountID, UserID: userID})
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
