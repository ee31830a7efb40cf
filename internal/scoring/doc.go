// Package scoring holds the deterministic rarity, risk and market-movement
// models. Every function is pure: no I/O, no clock, no randomness. Each model
// is a weighted sum of bucketed sub-scores in [0,1], scaled to [0,100] and
// clamped before it is returned.
package scoring
