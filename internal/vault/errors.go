package vault

import (
	xerrors "AegisVault/internal/errors"
)

// Sentinel errors for conditions callers branch on with errors.Is. Each
// carries the taxonomy code the API layer maps to an HTTP status.
var (
	ErrBelowMinimum       = xerrors.New(xerrors.CodeValidation, "deposit below minimum")
	ErrZeroShares         = xerrors.New(xerrors.CodeValidation, "share amount must be positive")
	ErrInsufficientShares = xerrors.New(xerrors.CodeValidation, "insufficient share balance")
	ErrInsufficientIdle   = xerrors.New(xerrors.CodeInvalidState, "insufficient idle balance")

	ErrPaused        = xerrors.New(xerrors.CodeInvalidState, "vault is paused")
	ErrEmergency     = xerrors.New(xerrors.CodeInvalidState, "vault is in emergency mode")
	ErrEmergencyOnly = xerrors.New(xerrors.CodeInvalidState, "operation requires emergency mode")

	ErrBreakerTripped = xerrors.New(xerrors.CodeInvalidState, "circuit breaker tripped")

	ErrProposalNotFound = xerrors.New(xerrors.CodeNotFound, "timelock proposal not found")
	ErrProposalImmature = xerrors.New(xerrors.CodeInvalidState, "timelock delay has not elapsed")
	ErrProposalExecuted = xerrors.New(xerrors.CodeInvalidState, "timelock proposal already executed")

	ErrAlreadyConfirmed = xerrors.New(xerrors.CodeConflict, "signer already confirmed this action")
	ErrNotASigner       = xerrors.New(xerrors.CodeUnauthorized, "caller is not in the signer set")
	ErrNotConfirmed     = xerrors.New(xerrors.CodeUnauthorized, "action lacks required confirmations")

	ErrSingleTxCap = xerrors.New(xerrors.CodeLimitExceeded, "amount exceeds single transaction cap")
	ErrDailyCap    = xerrors.New(xerrors.CodeLimitExceeded, "amount exceeds remaining daily cap")

	ErrDepegged = xerrors.New(xerrors.CodeInvalidState, "reference asset is off peg")

	ErrUnapprovedProtocol = xerrors.New(xerrors.CodeUnauthorized, "protocol is not approved")
	ErrAllocationCap      = xerrors.New(xerrors.CodeLimitExceeded, "protocol allocation cap exceeded")

	ErrPolicyForbids = xerrors.New(xerrors.CodeInvalidState, "liquidity policy forbids dual-sided pools")

	ErrNotOwner    = xerrors.New(xerrors.CodeUnauthorized, "caller is not the owner")
	ErrNotGuardian = xerrors.New(xerrors.CodeUnauthorized, "caller is not the guardian")
	ErrNotAgent    = xerrors.New(xerrors.CodeUnauthorized, "caller is not the agent")
)
