package testutil

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/routing-advisor/node-advisor/internal/types"
)

// RandomSnapshot generates a snapshot with the given number of channels and
// forwards spread over the window that ends at now. The same faker seed
// always yields the same snapshot.
func RandomSnapshot(faker *gofakeit.Faker, channels, forwards int, window time.Duration, now time.Time) types.Snapshot {
	snapshot := types.Snapshot{
		TakenAt:     now,
		WindowStart: now.Add(-window),
		Channels:    make(map[uint64]types.Channel, channels),
	}

	ids := make([]uint64, 0, channels)
	for i := 0; i < channels; i++ {
		id := uint64(100_000 + i)
		capacity := btcutil.Amount(faker.IntRange(100_000, 10_000_000))
		snapshot.Channels[id] = types.Channel{
			ChanID:       id,
			RemotePubkey: faker.HexUint(256),
			Alias:        faker.Username(),
			Capacity:     capacity,
			LocalBalance: btcutil.Amount(faker.IntRange(0, int(capacity))),
			BaseFeeMsat:  lnwire.MilliSatoshi(faker.IntRange(0, 1000)),
			FeeRatePpm:   int64(faker.IntRange(0, 2000)),
		}
		ids = append(ids, id)
	}
	if channels < 2 {
		return snapshot
	}

	for i := 0; i < forwards; i++ {
		in := ids[faker.IntRange(0, len(ids)-1)]
		out := ids[faker.IntRange(0, len(ids)-1)]
		if in == out {
			continue
		}
		tokens := lnwire.NewMSatFromSatoshis(btcutil.Amount(faker.IntRange(1_000, 500_000)))
		fee := lnwire.MilliSatoshi(faker.IntRange(0, 500_000))
		snapshot.Forwards = append(snapshot.Forwards, types.Forward{
			Timestamp:  now.Add(-time.Duration(faker.IntRange(0, int(window/time.Second))) * time.Second),
			ChanIDIn:   in,
			ChanIDOut:  out,
			AmtInMsat:  tokens + fee,
			AmtOutMsat: tokens,
			FeeMsat:    fee,
		})
	}

	return snapshot
}
