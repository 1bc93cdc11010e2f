package engine

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	channelPriorityBase = 2
	nodePriorityBase    = 4
)

// Distance returns the normalized distance of balance from target within
// [0, capacity]. Values below the target are scaled by the target, values
// above it by the headroom between target and capacity, so the result lies
// in [-1, 1] for balances inside the channel and is 0 exactly at target.
//
// Target must lie strictly between 0 and capacity.
func Distance(balance, target, capacity btcutil.Amount) float64 {
	if target <= 0 || target >= capacity {
		panic(fmt.Sprintf("engine: target %d outside of (0, %d)", target, capacity))
	}
	if balance <= target {
		return float64(balance)/float64(target) - 1
	}
	return float64(balance-target) / float64(capacity-target)
}

// Priority escalates exponentially in steps of minDistance.
func Priority(base int, distance, minDistance float64) float64 {
	return math.Pow(float64(base), math.Floor(math.Abs(distance)/minDistance))
}

func roundAmount(v float64) btcutil.Amount {
	return btcutil.Amount(math.Round(v))
}
