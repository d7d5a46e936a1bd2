package outbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/holydev/shopsphere/internal/broker"
	"github.com/holydev/shopsphere/internal/logger"
	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/repo"
)

func newRelayStore(t *testing.T, name string, bus broker.Broker) (*gorm.DB, *repo.Repository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.OutboxEvent{}))

	log, err := logger.NewLogger()
	require.NoError(t, err)
	return db, repo.NewRepository(db, nil, bus, log)
}

func seedEvents(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	base := time.Now().Add(-time.Minute)
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&model.OutboxEvent{
			EventName: "OrderCreatedEvent",
			Payload:   fmt.Sprintf(`{"orderId":"order-%d"}`, i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}).Error)
	}
}

func countPending(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.OutboxEvent{}).Where("processed_at IS NULL").Count(&n).Error)
	return n
}

func TestRelay_BatchCap(t *testing.T) {
	bus := broker.NewMemoryBroker()
	db, r := newRelayStore(t, "relay_batch", bus)
	seedEvents(t, db, 25)

	log, err := logger.NewLogger()
	require.NoError(t, err)
	relay := NewRelay(r, log, time.Second, 10)
	ctx := context.Background()

	relay.Poll(ctx)
	assert.EqualValues(t, 15, countPending(t, db), "one cycle processes at most the batch size")
	assert.Len(t, bus.EmittedEvents(), 10)

	relay.Poll(ctx)
	relay.Poll(ctx)
	assert.EqualValues(t, 0, countPending(t, db), "remaining rows drained by later cycles")
	assert.Len(t, bus.EmittedEvents(), 25)
}

func TestRelay_PreservesCreationOrder(t *testing.T) {
	bus := broker.NewMemoryBroker()
	db, r := newRelayStore(t, "relay_order", bus)
	seedEvents(t, db, 5)

	log, err := logger.NewLogger()
	require.NoError(t, err)
	NewRelay(r, log, time.Second, 10).Poll(context.Background())

	emitted := bus.EmittedEvents()
	require.Len(t, emitted, 5)
	for i, e := range emitted {
		assert.Contains(t, string(e.Payload), fmt.Sprintf("order-%d", i))
	}
}

// failingBroker rejects payloads for one event name, everything else passes.
type failingBroker struct {
	inner *broker.MemoryBroker
	deny  string
}

func (f *failingBroker) Emit(ctx context.Context, eventName string, payload []byte) error {
	if eventName == f.deny {
		return errors.New("broker unreachable")
	}
	return f.inner.Emit(ctx, eventName, payload)
}

func TestRelay_PublishFailureLeavesRowPending(t *testing.T) {
	inner := broker.NewMemoryBroker()
	bus := &failingBroker{inner: inner, deny: "user_created"}
	db, r := newRelayStore(t, "relay_fail", bus)

	require.NoError(t, db.Create(&model.OutboxEvent{
		EventName: "user_created",
		Payload:   `{"id":"u-1"}`,
		CreatedAt: time.Now().Add(-2 * time.Second),
	}).Error)
	require.NoError(t, db.Create(&model.OutboxEvent{
		EventName: "OrderCreatedEvent",
		Payload:   `{"orderId":"order-1"}`,
		CreatedAt: time.Now().Add(-time.Second),
	}).Error)

	log, err := logger.NewLogger()
	require.NoError(t, err)
	relay := NewRelay(r, log, time.Second, 10)
	relay.Poll(context.Background())

	// The failing row stays pending for the next cycle; the healthy row in
	// the same batch is unaffected.
	assert.EqualValues(t, 1, countPending(t, db))
	require.Len(t, inner.EmittedEvents(), 1)
	assert.Equal(t, "OrderCreatedEvent", inner.EmittedEvents()[0].EventName)

	// Once the broker recovers the pending row is retried and drained.
	bus.deny = ""
	relay.Poll(context.Background())
	assert.EqualValues(t, 0, countPending(t, db))
}

func TestRelay_ProcessedTimestampSetOnce(t *testing.T) {
	bus := broker.NewMemoryBroker()
	db, r := newRelayStore(t, "relay_once", bus)
	seedEvents(t, db, 1)

	log, err := logger.NewLogger()
	require.NoError(t, err)
	relay := NewRelay(r, log, time.Second, 10)
	relay.Poll(context.Background())

	var evt model.OutboxEvent
	require.NoError(t, db.First(&evt).Error)
	require.NotNil(t, evt.ProcessedAt)
	first := *evt.ProcessedAt

	// Re-marking is a no-op thanks to the IS NULL guard.
	require.NoError(t, r.MarkOutboxProcessed(context.Background(), evt.ID))
	require.NoError(t, db.First(&evt).Error)
	assert.True(t, evt.ProcessedAt.Equal(first), "processed timestamp must not move")

	relay.Poll(context.Background())
	assert.Len(t, bus.EmittedEvents(), 1, "processed rows are never re-published")
}

func TestRelay_Defaults(t *testing.T) {
	log, err := logger.NewLogger()
	require.NoError(t, err)
	relay := NewRelay(nil, log, 0, 0)
	assert.Equal(t, 5*time.Second, relay.interval)
	assert.Equal(t, 10, relay.batch)
}
