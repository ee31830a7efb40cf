package config

import "maps"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Contract
	redact(&out.Contract.PrivateKey)
	redact(&out.Contract.KeyPassword)

	// Sources
	redact(&out.Sources.MarketplaceAPIKey)
	redact(&out.Sources.HolderIndexerAPIKey)

	// Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	redact(&out.Redis.Password)

	// S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	redact(&out.Server.APIKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	out.Sources.Watchlist = cloneStrings(cfg.Sources.Watchlist)

	// RPC URLs commonly embed provider keys in the path.
	if cfg.Chain.RPCURLs != nil {
		out.Chain.RPCURLs = maps.Clone(cfg.Chain.RPCURLs)
		for k := range out.Chain.RPCURLs {
			v := out.Chain.RPCURLs[k]
			redact(&v)
			out.Chain.RPCURLs[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
