package vault

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"AegisVault/internal/audit"
	xerrors "AegisVault/internal/errors"
	"AegisVault/internal/market"
	"AegisVault/internal/observability/alerting"
	"AegisVault/pkg/logger"
)

// Vault owns the share ledger, the position book and the security gates.
// One mutex serialises all mutations, so an in-flight operation (including
// its single external call) completes before the next is admitted. Read
// queries copy state out under a read lock and never block behind external
// calls, which happen only inside write-locked operations.
type Vault struct {
	mu sync.RWMutex
	st *state

	journal *audit.Log
	alerts  alerting.Dispatcher
	log     *slog.Logger

	router   market.LiquidityRouter
	oracle   market.PriceOracle
	token    market.Token
	address  common.Address
	refAsset common.Address

	nowFn       func() time.Time
	callTimeout time.Duration
}

// Option customises vault construction.
type Option func(*Vault)

// WithRouter wires the AMM liquidity router.
func WithRouter(router market.LiquidityRouter) Option {
	return func(v *Vault) { v.router = router }
}

// WithOracle wires the reference-asset price oracle consumed by the peg
// guard.
func WithOracle(oracle market.PriceOracle) Option {
	return func(v *Vault) { v.oracle = oracle }
}

// WithToken wires the reference-asset transfer client. Without it the
// vault runs in book-entry mode and skips on-chain transfers.
func WithToken(token market.Token) Option {
	return func(v *Vault) { v.token = token }
}

// WithAddress sets the vault's own settlement address, used as the
// recipient of router outputs.
func WithAddress(address common.Address) Option {
	return func(v *Vault) { v.address = address }
}

// WithAlerts wires the alert dispatcher for breaker trips and depegs.
func WithAlerts(dispatcher alerting.Dispatcher) Option {
	return func(v *Vault) { v.alerts = dispatcher }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.nowFn = now }
}

// WithCallTimeout overrides the bound on external calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(v *Vault) {
		if timeout > 0 {
			v.callTimeout = timeout
		}
	}
}

// New validates params and constructs a vault around the given journal.
func New(params Params, journal *audit.Log, opts ...Option) (*Vault, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if journal == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "audit journal is required")
	}
	v := &Vault{
		st:          newState(params),
		refAsset:    params.ReferenceAsset,
		journal:     journal,
		log:         logger.L(),
		nowFn:       time.Now,
		callTimeout: ExternalCallTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Journal exposes the vault's audit journal for event replay.
func (v *Vault) Journal() *audit.Log {
	return v.journal
}

// Deposit pools funds from the depositor and mints proportional shares.
func (v *Vault) Deposit(ctx context.Context, depositor common.Address, amount *big.Int) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureActive(); err != nil {
		return nil, err
	}
	if err := v.checkPeg(ctx, depositor); err != nil {
		return nil, err
	}
	if depositor == (common.Address{}) {
		return nil, xerrors.New(xerrors.CodeValidation, "depositor address is required")
	}
	if amount == nil || amount.Cmp(v.st.minDeposit) < 0 {
		return nil, ErrBelowMinimum
	}

	shares, err := sharesForDeposit(amount, v.st.totalShares, v.st.totalValue())
	if err != nil {
		return nil, err
	}

	snapshot := v.st.clone()
	v.creditDeposit(depositor, amount, shares, true)

	if v.token != nil {
		callCtx, cancel := v.externalContext(ctx)
		err := v.token.TransferFrom(callCtx, depositor, v.address, amount)
		cancel()
		if err != nil {
			v.st = snapshot
			return nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "deposit transfer failed")
		}
	}

	v.journal.Append(ctx, EventDeposited, depositor.Hex(), map[string]string{
		"amount": amount.String(),
		"shares": shares.String(),
	})
	return shares, nil
}

// DepositOtherAsset mints shares for a non-reference-asset deposit. The
// amount is taken as already USD-denominated; no conversion oracle is
// consulted, and the idle reference balance is unchanged.
func (v *Vault) DepositOtherAsset(ctx context.Context, depositor, asset common.Address, amount *big.Int) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureActive(); err != nil {
		return nil, err
	}
	if err := v.checkPeg(ctx, depositor); err != nil {
		return nil, err
	}
	if depositor == (common.Address{}) {
		return nil, xerrors.New(xerrors.CodeValidation, "depositor address is required")
	}
	if asset == (common.Address{}) {
		return nil, xerrors.New(xerrors.CodeValidation, "asset address is required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeValidation, "amount must be positive")
	}

	shares, err := sharesForDeposit(amount, v.st.totalShares, v.st.totalValue())
	if err != nil {
		return nil, err
	}

	v.creditDeposit(depositor, amount, shares, false)

	v.journal.Append(ctx, EventDeposited, depositor.Hex(), map[string]string{
		"asset":  asset.Hex(),
		"amount": amount.String(),
		"shares": shares.String(),
	})
	return shares, nil
}

// Withdraw burns shares and pays out the proportional amount, subject to
// the withdrawal limiter and the circuit breaker.
func (v *Vault) Withdraw(ctx context.Context, withdrawer common.Address, shares *big.Int) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureActive(); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrZeroShares
	}
	acct, ok := v.st.accounts[withdrawer]
	if !ok || shares.Cmp(acct.shares) > 0 {
		return nil, ErrInsufficientShares
	}

	amount := amountForShares(shares, v.st.totalShares, v.st.totalValue())

	if v.st.breakerTripped {
		return nil, ErrBreakerTripped
	}

	// Snapshot before the limiter and breaker record anything, so every
	// abort path leaves the window and counter exactly as they were.
	snapshot := v.st.clone()
	now := v.nowFn()
	if err := v.st.allowWithdrawal(amount, now); err != nil {
		remaining := v.st.remainingToday(now)
		v.st = snapshot
		v.journal.Append(ctx, EventWithdrawLimitExceeded, withdrawer.Hex(), map[string]string{
			"attempted": amount.String(),
			"remaining": remaining.String(),
		})
		return nil, err
	}

	if oversize, tripped := v.st.recordBreakerSample(amount); oversize {
		// The trip outlives the aborted withdrawal; only the ledger and
		// window effects are unwound.
		count, isTripped := v.st.breakerCount, v.st.breakerTripped
		v.st = snapshot
		v.st.breakerCount, v.st.breakerTripped = count, isTripped
		if tripped {
			v.journal.Append(ctx, EventCircuitBreakerTriggered, withdrawer.Hex(), map[string]string{
				"amount": amount.String(),
			})
			v.alert(ctx, xerrors.CodeInvalidState, "circuit breaker tripped by oversize withdrawals", map[string]string{
				"amount": amount.String(),
			})
		}
		return nil, ErrSingleTxCap
	}

	if amount.Cmp(v.st.idleBalance) > 0 {
		v.st = snapshot
		return nil, ErrInsufficientIdle
	}

	acct = v.st.accounts[withdrawer]
	acct.shares.Sub(acct.shares, shares)
	v.st.totalShares.Sub(v.st.totalShares, shares)
	subFloorZero(v.st.totalDeposited, amount)
	v.st.idleBalance.Sub(v.st.idleBalance, amount)

	if v.token != nil {
		callCtx, cancel := v.externalContext(ctx)
		err := v.token.Transfer(callCtx, withdrawer, amount)
		cancel()
		if err != nil {
			v.st = snapshot
			return nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "withdrawal transfer failed")
		}
	}

	v.journal.Append(ctx, EventWithdrawn, withdrawer.Hex(), map[string]string{
		"amount": amount.String(),
		"shares": shares.String(),
	})
	return amount, nil
}

// creditDeposit applies the ledger effects of a deposit. Reference-asset
// deposits add to the idle balance; other assets only add claim value.
func (v *Vault) creditDeposit(depositor common.Address, amount, shares *big.Int, referenceAsset bool) {
	acct, ok := v.st.accounts[depositor]
	if !ok {
		acct = &account{shares: big.NewInt(0)}
		v.st.accounts[depositor] = acct
	}
	acct.shares.Add(acct.shares, shares)
	acct.lastDeposit = v.nowFn()
	v.st.totalShares.Add(v.st.totalShares, shares)
	v.st.totalDeposited.Add(v.st.totalDeposited, amount)
	if referenceAsset {
		v.st.idleBalance.Add(v.st.idleBalance, amount)
	}
}

// ensureActive rejects mutations while paused or in emergency mode.
func (v *Vault) ensureActive() error {
	if v.st.paused {
		return ErrPaused
	}
	if v.st.emergency {
		return ErrEmergency
	}
	return nil
}

// ensureBreakerClear fails fast while the circuit breaker is tripped.
func (v *Vault) ensureBreakerClear() error {
	if v.st.breakerTripped {
		return ErrBreakerTripped
	}
	return nil
}

// checkPeg re-reads the oracle and rejects the operation when the
// reference asset trades below the depeg threshold. The answer is never
// cached; a recovered peg unblocks the very next call.
func (v *Vault) checkPeg(ctx context.Context, actor common.Address) error {
	if !v.st.pegGuard || v.oracle == nil {
		return nil
	}
	callCtx, cancel := v.externalContext(ctx)
	point, err := v.oracle.LatestPrice(callCtx)
	cancel()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeExternalFailure, err, "oracle read failed")
	}
	if point.Price.Cmp(v.st.depegThreshold) < 0 {
		v.journal.Append(ctx, EventDepegDetected, actor.Hex(), map[string]string{
			"price":     point.Price.String(),
			"threshold": v.st.depegThreshold.String(),
		})
		v.alert(ctx, xerrors.CodeExternalFailure, "reference asset below depeg threshold", map[string]string{
			"price": point.Price.String(),
		})
		return ErrDepegged
	}
	return nil
}

// externalContext bounds an external call at now + callTimeout, tightened
// further by any caller-supplied deadline.
func (v *Vault) externalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, v.nowFn().Add(v.callTimeout))
}

func (v *Vault) alert(ctx context.Context, code xerrors.Code, message string, metadata map[string]string) {
	if v.alerts == nil {
		return
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   xerrors.SeverityCritical,
		Vault:      v.address.Hex(),
		Metadata:   metadata,
		OccurredAt: v.nowFn(),
	}
	if err := v.alerts.Notify(ctx, event); err != nil {
		v.log.Error("alert dispatch failed", slog.Any("error", err))
	}
}

func (v *Vault) requireOwner(caller common.Address) error {
	if caller != v.st.owner {
		return ErrNotOwner
	}
	return nil
}

func (v *Vault) requireGuardian(caller common.Address) error {
	if caller != v.st.guardian {
		return ErrNotGuardian
	}
	return nil
}

func (v *Vault) requireAgent(caller common.Address) error {
	if caller != v.st.agent {
		return ErrNotAgent
	}
	return nil
}
