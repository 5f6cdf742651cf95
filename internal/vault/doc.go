// Package vault implements the custodial vault core: the proportional share
// ledger, the liquidity position book and the stack of security gates
// (timelock, multi-signature confirmations, circuit breaker, withdrawal
// limits, peg guard and per-protocol allocation caps) that every mutating
// operation must clear before state is touched. A single mutex serialises
// all mutations per vault instance; read queries copy state out and never
// observe a torn mutation. Every committed transition is appended to an
// ordered audit log.
package vault
