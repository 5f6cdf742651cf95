// Package market defines the external trading-venue surface consumed by the
// vault core: the AMM liquidity router, the reference-asset price oracle and
// the value-transfer token interface. Implementations live in subpackages;
// the vault only ever sees these interfaces so tests can substitute fakes
// and deployments can point at any EVM venue.
package market
