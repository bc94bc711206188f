package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	published []Transaction
}

func (f *fakeOutbox) Publish(ctx context.Context, tx Transaction) error {
	f.published = append(f.published, tx)
	return nil
}

func TestFakeOutboxRecordsTransactions(t *testing.T) {
	var ob Outbox = &fakeOutbox{}
	tx := Transaction{RoomID: "ROOM1", UserID: "p0", GameType: "luckymine", Amount: 195}
	require.NoError(t, ob.Publish(context.Background(), tx))

	f := ob.(*fakeOutbox)
	require.Len(t, f.published, 1)
	require.Equal(t, uint64(195), f.published[0].Amount)
}
