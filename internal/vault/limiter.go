package vault

import (
	"math/big"
	"time"
)

// rollWindow resets the daily withdrawal counter the first time an attempt
// lands on a new day index (unix / 86400). The reset is lazy; nothing runs
// between attempts.
func (s *state) rollWindow(now time.Time) {
	dayIndex := now.Unix() / secondsPerDay
	if dayIndex > s.dayIndex {
		s.dayIndex = dayIndex
		s.withdrawnToday = big.NewInt(0)
	}
}

// allowWithdrawal enforces the single-transaction cap and the rolling daily
// cap, recording the amount against today's window on success.
func (s *state) allowWithdrawal(amount *big.Int, now time.Time) error {
	s.rollWindow(now)

	if amount.Cmp(s.singleTxCap) > 0 {
		return ErrSingleTxCap
	}
	projected := new(big.Int).Add(s.withdrawnToday, amount)
	if projected.Cmp(s.dailyCap) > 0 {
		return ErrDailyCap
	}
	s.withdrawnToday = projected
	return nil
}

// remainingToday reports how much of the daily cap is still available.
func (s *state) remainingToday(now time.Time) *big.Int {
	dayIndex := now.Unix() / secondsPerDay
	if dayIndex > s.dayIndex {
		return new(big.Int).Set(s.dailyCap)
	}
	remaining := new(big.Int).Sub(s.dailyCap, s.withdrawnToday)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining
}
