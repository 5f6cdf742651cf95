package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// checkAllocation verifies that deploying value into protocol pool keeps
// its share of total vault value at or under the cap. An empty vault has
// nothing to cap against, so the check passes.
func (s *state) checkAllocation(pool common.Address, value *big.Int) error {
	if _, ok := s.approvedProtocols[pool]; !ok {
		return ErrUnapprovedProtocol
	}
	totalValue := s.totalValue()
	if totalValue.Sign() == 0 {
		return nil
	}
	projected := new(big.Int).Set(value)
	if current, ok := s.allocations[pool]; ok {
		projected.Add(projected, current)
	}
	// projected / totalValue <= cap, kept in integers:
	// projected * 10000 <= cap_bps * totalValue
	lhs := new(big.Int).Mul(projected, big.NewInt(bpsDenominator))
	rhs := new(big.Int).Mul(totalValue, big.NewInt(AllocationCapBps))
	if lhs.Cmp(rhs) > 0 {
		return ErrAllocationCap
	}
	return nil
}

// addAllocation books realised deployed value against the protocol.
func (s *state) addAllocation(pool common.Address, value *big.Int) {
	current, ok := s.allocations[pool]
	if !ok {
		current = big.NewInt(0)
		s.allocations[pool] = current
	}
	current.Add(current, value)
}

// reduceAllocation releases value on liquidity removal, floored at zero.
func (s *state) reduceAllocation(pool common.Address, value *big.Int) {
	current, ok := s.allocations[pool]
	if !ok {
		return
	}
	subFloorZero(current, value)
}
