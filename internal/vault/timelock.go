package vault

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// proposalID content-addresses a timelock proposal: the Keccak-256 of the
// canonical action encoding plus the proposal time, so identical actions
// proposed at different times get distinct, deterministic identifiers.
func proposalID(action ProposalAction, proposedAt time.Time) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(proposedAt.Unix()))

	payload := make([]byte, 0, len(action.Kind)+common.AddressLength+len(ts))
	payload = append(payload, []byte(action.Kind)...)
	payload = append(payload, action.Address.Bytes()...)
	payload = append(payload, ts[:]...)
	return crypto.Keccak256Hash(payload)
}

// withdrawalActionID scopes multi-signature confirmations to one specific
// withdrawal on one specific day: Keccak-256 over (amount, destination,
// dayIndex). Confirmations gathered today cannot authorise the same
// transfer tomorrow.
func withdrawalActionID(amount []byte, destination common.Address, dayIndex int64) common.Hash {
	var day [8]byte
	binary.BigEndian.PutUint64(day[:], uint64(dayIndex))

	payload := make([]byte, 0, len(amount)+common.AddressLength+len(day))
	payload = append(payload, amount...)
	payload = append(payload, destination.Bytes()...)
	payload = append(payload, day[:]...)
	return crypto.Keccak256Hash(payload)
}
