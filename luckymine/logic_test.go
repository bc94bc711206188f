package luckymine

import (
	"strconv"
	"testing"
	"time"

	"gamecore/engine"
	"gamecore/gamerand"
	"gamecore/room"

	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T, tiles, mines int, entry uint64, mineTiles []int) *engine.Context[State] {
	t.Helper()
	meta := room.NewMeta("luckymine", 1, true, entry)
	_, err := meta.AssignSeat("p0")
	require.NoError(t, err)

	st := NewState(tiles, mines, entry)
	for _, t := range mineTiles {
		st.setBit(&st.MineMask, t)
	}
	return &engine.Context[State]{RoomID: "ROOM1", State: st, Meta: meta}
}

func TestMineHit(t *testing.T) {
	rc := newTestRoom(t, 25, 5, 100, []int{3})
	logic := Logic{}
	now := time.Now()

	result, err := logic.Evaluate(nil, rc, engine.Command{UserID: "p0", Action: "Click", Payload: []byte(`{"tileIndex":3}`)}, gamerand.CryptoSource{}, now)
	require.NoError(t, err)
	require.Equal(t, StatusHitMine, result.NewState.Status)
	require.Equal(t, uint64(0), result.NewState.CurrentWinnings)
	require.NotNil(t, result.GameOver)
	require.Equal(t, "HitMine", result.Events[0].Name)
	require.Equal(t, "GameOver", result.Events[1].Name)

	rc.State = result.NewState
	_, err = logic.Evaluate(nil, rc, engine.Command{UserID: "p0", Action: "Click", Payload: []byte(`{"tileIndex":4}`)}, gamerand.CryptoSource{}, now)
	require.Error(t, err)
}

func TestCashout(t *testing.T) {
	// Mines occupy tiles 22,23,24 and two others outside the indices
	// we reveal, so clicking 0,1,2 is guaranteed safe.
	rc := newTestRoom(t, 25, 5, 100, []int{20, 21, 22, 23, 24})
	logic := Logic{}
	now := time.Now()

	for _, tile := range []int{0, 1, 2} {
		result, err := logic.Evaluate(nil, rc, engine.Command{UserID: "p0", Action: "Click", Payload: []byte(`{"tileIndex":` + strconv.Itoa(tile) + `}`)}, gamerand.CryptoSource{}, now)
		require.NoError(t, err)
		rc.State = result.NewState
	}
	require.Equal(t, uint8(3), rc.State.RevealedSafe)

	result, err := logic.Evaluate(nil, rc, engine.Command{UserID: "p0", Action: "Cashout"}, gamerand.CryptoSource{}, now)
	require.NoError(t, err)
	require.Equal(t, StatusCashedOut, result.NewState.Status)
	require.Equal(t, uint64(195), result.NewState.CurrentWinnings, "entry=100, tiles=25, mines=5, k=3: floor(100*(25/20)*(24/19)*(23/18)*0.97)")

	var sawTx bool
	for _, ev := range result.Events {
		if ev.Name == "Transaction" {
			sawTx = true
			data := ev.Data.(map[string]interface{})
			require.Equal(t, uint64(195), data["amount"])
		}
	}
	require.True(t, sawTx)
}

// TestRevealInvariant checks popcount(revealed) == revealed-safe, plus
// one for the mine that ended the board.
func TestRevealInvariant(t *testing.T) {
	rc := newTestRoom(t, 10, 3, 100, []int{0, 1, 2})
	logic := Logic{}
	now := time.Now()

	for _, tile := range []int{3, 4, 5, 6, 7} {
		result, err := logic.Evaluate(nil, rc, engine.Command{UserID: "p0", Action: "Reveal", Payload: []byte(`{"tileIndex":` + strconv.Itoa(tile) + `}`)}, gamerand.CryptoSource{}, now)
		require.NoError(t, err)
		rc.State = result.NewState
		require.Equal(t, int(rc.State.RevealedSafe), popcount(rc.State.Revealed))
		require.Equal(t, rc.State.JackpotCounter, uint32(rc.State.RevealedSafe))
	}

	result, err := logic.Evaluate(nil, rc, engine.Command{UserID: "p0", Action: "Click", Payload: []byte(`{"tileIndex":0}`)}, gamerand.CryptoSource{}, now)
	require.NoError(t, err)
	rc.State = result.NewState
	require.Equal(t, StatusHitMine, rc.State.Status)
	require.Equal(t, int(rc.State.RevealedSafe)+1, popcount(rc.State.Revealed))
}

func TestStateDTOHidesMines(t *testing.T) {
	rc := newTestRoom(t, 10, 3, 100, []int{0, 1, 2})
	logic := Logic{}
	dto, err := logic.StateDTO(rc)
	require.NoError(t, err)
	require.Empty(t, dto.(StateDTO).Revealed, "unrevealed board exposes nothing")
}

func TestMarshalRoundTrip(t *testing.T) {
	st := NewState(25, 5, 100)
	st.MineMask = PlaceMines(gamerand.CryptoSource{}, 25, 5)
	st.RevealedSafe = 2
	st.CurrentWinnings = 130
	st.JackpotCounter = 2

	raw, err := st.MarshalBinary()
	require.NoError(t, err)
	var decoded State
	require.NoError(t, decoded.UnmarshalBinary(raw))
	require.Equal(t, st, decoded)
}
