// Package source contains one adapter per external data origin: ERC-20
// reads over JSON-RPC, the holder-count ladder, a DeFi yield aggregator, an
// RWA marketplace and a chain-log watchlist.
//
// Adapters make a single attempt under their own timeout and never call each
// other. Failures come back as *domain.SourceError so callers can treat the
// source as having contributed nothing.
package source
