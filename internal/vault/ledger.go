package vault

import (
	"math/big"

	xerrors "AegisVault/internal/errors"
)

// sharesForDeposit prices a deposit into claim shares. The first deposit
// into an empty vault mints shares 1:1; afterwards shares are
// floor(amount * totalShares / totalValue) against the pre-deposit value.
func sharesForDeposit(amount, totalShares, totalValue *big.Int) (*big.Int, error) {
	if totalShares.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	if totalValue.Sign() == 0 {
		// Shares exist but all value is deployed; the share price is
		// undefined and minting would be arbitrary dilution.
		return nil, xerrors.New(xerrors.CodeInvalidState, "vault has no idle value to price shares against")
	}
	return mulDiv(amount, totalShares, totalValue), nil
}

// amountForShares converts a share burn into a payout amount,
// floor(shares * totalValue / totalShares).
func amountForShares(shares, totalShares, totalValue *big.Int) *big.Int {
	if totalShares.Sign() == 0 {
		return big.NewInt(0)
	}
	return mulDiv(shares, totalValue, totalShares)
}

// mulDiv computes floor(a * b / den) without intermediate overflow.
func mulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// applySlippage returns floor(amount * (10000 - bps) / 10000), the minimum
// acceptable output for a quoted amount.
func applySlippage(amount *big.Int, bps uint32) *big.Int {
	keep := big.NewInt(int64(bpsDenominator - bps))
	return mulDiv(amount, keep, big.NewInt(bpsDenominator))
}

// subFloorZero subtracts b from a in place, flooring at zero.
func subFloorZero(a, b *big.Int) {
	a.Sub(a, b)
	if a.Sign() < 0 {
		a.SetInt64(0)
	}
}
