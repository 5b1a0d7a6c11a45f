package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestEmitRequiresTransaction(t *testing.T) {
	t.Parallel()
	conn := newOutboxTestDB(t)
	service := NewService(NewRepository(conn), nil)

	err := service.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	})
	if err == nil {
		t.Fatal("emit without tx should fail")
	}
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	t.Parallel()
	conn := newOutboxTestDB(t)
	service := NewService(NewRepository(conn), nil)

	actorID := uuid.New()
	aggregateID := uuid.New()
	occurredAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return service.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{UserID: actorID, Role: "customer"},
			Data:          map[string]any{"total_cents": 1800},
			Version:       1,
			OccurredAt:    occurredAt,
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var row models.OutboxEvent
	if err := conn.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.EventType != enums.EventOrderCreated {
		t.Fatalf("event type = %s", row.EventType)
	}
	if row.AggregateID != aggregateID {
		t.Fatalf("aggregate id = %s", row.AggregateID)
	}
	if row.PublishedAt != nil {
		t.Fatal("new row must start unpublished")
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("envelope version = %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		t.Fatalf("event id %q is not a uuid: %v", envelope.EventID, err)
	}
	if !envelope.OccurredAt.Equal(occurredAt) {
		t.Fatalf("occurred at = %v", envelope.OccurredAt)
	}
	if envelope.Actor == nil || envelope.Actor.UserID != actorID || envelope.Actor.Role != "customer" {
		t.Fatalf("actor = %+v", envelope.Actor)
	}

	var data map[string]any
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["total_cents"] != float64(1800) {
		t.Fatalf("data = %v", data)
	}
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	t.Parallel()
	conn := newOutboxTestDB(t)
	service := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := service.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]any{"total_cents": 500},
		}); err != nil {
			return err
		}
		return errors.New("state change failed")
	})
	if err == nil {
		t.Fatal("transaction should have failed")
	}

	var count int64
	if err := conn.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled-back emit left %d rows", count)
	}
}

func TestFetchUnpublishedSkipsExhaustedAndPublished(t *testing.T) {
	t.Parallel()
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	service := NewService(repo, nil)

	var ids []uuid.UUID
	err := conn.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if err := service.Emit(context.Background(), tx, DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Data:          map[string]any{"n": i},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var rows []models.OutboxEvent
	if err := conn.Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	if err := repo.MarkPublished(ids[0]); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	cause := errors.New("broker unavailable")
	for i := 0; i < 5; i++ {
		if err := repo.MarkFailed(ids[1], cause); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}

	pending, err := repo.FetchUnpublished(10, 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("pending = %v", pending)
	}

	var failed models.OutboxEvent
	if err := conn.First(&failed, "id = ?", ids[1]).Error; err != nil {
		t.Fatalf("load failed row: %v", err)
	}
	if failed.AttemptCount != 5 {
		t.Fatalf("attempt count = %d", failed.AttemptCount)
	}
	if failed.LastError == nil || *failed.LastError != "broker unavailable" {
		t.Fatalf("last error = %v", failed.LastError)
	}
}

func TestDeletePublishedBefore(t *testing.T) {
	t.Parallel()
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	rows := []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &old},
		{ID: uuid.New(), EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &recent},
		{ID: uuid.New(), EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)},
	}
	if err := conn.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted, err := repo.DeletePublishedBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d", deleted)
	}

	var count int64
	if err := conn.Model(&models.OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("remaining rows = %d", count)
	}
}
