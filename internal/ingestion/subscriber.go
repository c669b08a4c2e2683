// Package ingestion wires the engines to NATS JetStream. Mutation notices
// published by the transaction and trade services trigger balance
// recomputation without the services knowing about the engine.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wealthledger/internal/domain"
)

const (
	// StreamName holds every mutation notice subject.
	StreamName = "WLOG_MUTATIONS"

	SubjectTransactionRecorded = "wealthlog.transactions.recorded"
	SubjectTradeClosed         = "wealthlog.trades.closed"

	consumerName = "ledger-recompute"
)

// MutationNotice announces that an account's ledger inputs changed and its
// balance needs rebuilding. One notice per affected account.
type MutationNotice struct {
	AccountID uuid.UUID `json:"account_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// Recomputer rebuilds one account's balance. Satisfied by *ledger.Engine.
type Recomputer interface {
	Recompute(ctx context.Context, userID, accountID uuid.UUID) (decimal.Decimal, error)
}

// Subscriber consumes mutation notices and runs recomputation with
// explicit acks. Failures are NAK-ed for redelivery; notices for accounts
// that no longer exist are acked and dropped.
type Subscriber struct {
	js       jetstream.JetStream
	engine   Recomputer
	log      zerolog.Logger
	consumer jetstream.ConsumeContext
}

func NewSubscriber(js jetstream.JetStream, engine Recomputer, log zerolog.Logger) *Subscriber {
	return &Subscriber{js: js, engine: engine, log: log}
}

// Start creates the durable consumer and begins processing.
func (s *Subscriber) Start(ctx context.Context) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: "wealthlog.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if s.handleNotice(ctx, msg.Subject(), msg.Data()) {
			_ = msg.Ack()
		} else {
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}

	s.consumer = cc
	s.log.Info().Str("stream", StreamName).Str("consumer", consumerName).Msg("subscribed to mutation notices")
	return nil
}

// handleNotice reports whether the message should be acked. Malformed
// notices and notices for missing accounts are acked so they are not
// redelivered forever; transient engine failures are not.
func (s *Subscriber) handleNotice(ctx context.Context, subject string, data []byte) bool {
	var notice MutationNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		s.log.Error().Err(err).Str("subject", subject).Msg("malformed mutation notice, dropping")
		return true
	}
	if notice.AccountID == uuid.Nil || notice.UserID == uuid.Nil {
		s.log.Error().Str("subject", subject).Msg("mutation notice missing ids, dropping")
		return true
	}

	balance, err := s.engine.Recompute(ctx, notice.UserID, notice.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().
				Str("account_id", notice.AccountID.String()).
				Msg("mutation notice for unknown account, dropping")
			return true
		}
		s.log.Error().Err(err).
			Str("account_id", notice.AccountID.String()).
			Msg("recompute failed, will retry")
		return false
	}

	s.log.Info().
		Str("account_id", notice.AccountID.String()).
		Str("balance", balance.String()).
		Str("subject", subject).
		Msg("balance rebuilt from mutation notice")
	return true
}

// Stop drains the consumer.
func (s *Subscriber) Stop() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
	s.log.Info().Msg("mutation subscriber stopped")
}

// EnsureStream creates the mutation stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"wealthlog.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return nil
}

// Connect establishes a NATS connection and returns a JetStream context.
func Connect(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
