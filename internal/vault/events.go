package vault

// Audit event types emitted by the vault. The stream is append-only and
// strictly ordered; downstream indexers rely on both properties.
const (
	EventDeposited               = "Deposited"
	EventWithdrawn               = "Withdrawn"
	EventSwapped                 = "Swapped"
	EventLiquidityAdded          = "LiquidityAdded"
	EventLiquidityRemoved        = "LiquidityRemoved"
	EventTimelockProposed        = "TimelockProposed"
	EventTimelockExecuted        = "TimelockExecuted"
	EventTimelockCancelled       = "TimelockCancelled"
	EventMultiSigConfirmed       = "MultiSigConfirmed"
	EventGatedWithdrawalExecuted = "GatedWithdrawalExecuted"
	EventCircuitBreakerTriggered = "CircuitBreakerTriggered"
	EventCircuitBreakerReset     = "CircuitBreakerReset"
	EventWithdrawLimitExceeded   = "WithdrawLimitExceeded"
	EventDepegDetected           = "DepegDetected"
	EventProtocolApproved        = "ProtocolApproved"
	EventProtocolRemoved         = "ProtocolRemoved"
	EventVaultPaused             = "VaultPaused"
	EventVaultUnpaused           = "VaultUnpaused"
	EventEmergencyEntered        = "EmergencyEntered"
	EventEmergencyExited         = "EmergencyExited"
	EventEmergencyDrained        = "EmergencyDrained"
	EventAgentRotated            = "AgentRotated"
	EventGuardianChanged         = "GuardianChanged"
	EventOracleChanged           = "OracleChanged"
	EventSlippageChanged         = "SlippageChanged"
	EventLimitsChanged           = "LimitsChanged"
	EventPegGuardChanged         = "PegGuardChanged"
	EventFeeChanged              = "FeeChanged"
)
