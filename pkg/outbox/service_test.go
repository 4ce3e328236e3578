package outbox_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutledger/backend/pkg/db/dbtest"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	"github.com/scoutledger/backend/pkg/outbox"
	"github.com/scoutledger/backend/pkg/outbox/payloads"
)

func blockedEvent(aggregate uuid.UUID) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventWeeklyPayoutBlocked,
		AggregateType: enums.AggregateSeasonWeek,
		AggregateID:   aggregate,
		Actor:         &outbox.ActorRef{Job: "weekly-rewards"},
		Data: payloads.WeeklyPayoutBlockedEvent{
			Season: "2025-W02",
			Week:   "2025-W07",
			Mode:   "tokens",
			Code:   "DATA_INTEGRITY_ERROR",
			Reason: "empty leaderboard",
		},
	}
}

func TestEmitStoresSealedEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)
	aggregate := uuid.New()

	require.NoError(t, svc.Emit(context.Background(), conn, blockedEvent(aggregate)))

	rows, err := repo.ListByAggregate(context.Background(), enums.AggregateSeasonWeek, aggregate)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	env, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	require.NotNil(t, env.Actor)
	assert.Equal(t, "weekly-rewards", env.Actor.Job)
	assert.JSONEq(t, `{"season":"2025-W02","week":"2025-W07","mode":"tokens","code":"DATA_INTEGRITY_ERROR","reason":"empty leaderboard"}`, string(env.Data))
}

func TestEmitRejectsMalformedEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	ctx := context.Background()

	bad := blockedEvent(uuid.New())
	bad.EventType = "weekly_payout_maybe"
	assert.Error(t, svc.Emit(ctx, conn, bad))

	bad = blockedEvent(uuid.Nil)
	assert.Error(t, svc.Emit(ctx, conn, bad))

	assert.Error(t, svc.Emit(ctx, nil, blockedEvent(uuid.New())))
}

func TestEmitIfNotExistsQueuesOnce(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)
	aggregate := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.EmitIfNotExists(ctx, conn, blockedEvent(aggregate)))
	require.NoError(t, svc.EmitIfNotExists(ctx, conn, blockedEvent(aggregate)))

	rows, err := repo.ListByAggregate(ctx, enums.AggregateSeasonWeek, aggregate)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDLQRepositoryClipsAndCounts(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	ctx := context.Background()

	long := strings.Repeat("x", 4096)
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventClaimConfirmed,
		AggregateType: enums.AggregateClaimSubmission,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		AttemptCount:  10,
	}))

	var stored models.OutboxDLQ
	require.NoError(t, conn.First(&stored).Error)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, *stored.ErrorMessage, 1024)

	n, err := dlq.CountSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	deleted, err := dlq.DeleteFailedBefore(ctx, conn, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}
