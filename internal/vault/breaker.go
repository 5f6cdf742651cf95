package vault

import (
	"math/big"
)

// recordBreakerSample feeds one withdrawal amount into the circuit breaker
// after the ledger has priced it. Oversize amounts bump the consecutive
// counter and trip the breaker at the threshold; compliant amounts decay
// the counter toward zero. The limiter already rejects oversize amounts
// before this runs, so the oversize branch cannot currently be reached
// through the withdrawal path; the wiring is kept as-is.
func (s *state) recordBreakerSample(amount *big.Int) (oversize, tripped bool) {
	if amount.Cmp(s.singleTxCap) > 0 {
		s.breakerCount++
		if s.breakerCount >= BreakerThreshold && !s.breakerTripped {
			s.breakerTripped = true
			return true, true
		}
		return true, false
	}
	if s.breakerCount > 0 {
		s.breakerCount--
	}
	return false, false
}

// resetBreaker clears the trip flag and the counter.
func (s *state) resetBreaker() {
	s.breakerCount = 0
	s.breakerTripped = false
}
