// Package logging provides structured logging for Tuya Fusion Core.
//
// A thin wrapper over log/slog: JSON or text output, level filtering,
// and service/version default fields on every entry. Configured from
// the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("source fetched", "source", "openapi", "devices", 12)
//
// Core packages (normalize, merge, reconcile, registry) do not import
// this package; they declare a minimal local Logger interface that
// *logging.Logger satisfies, so they stay dependency-free.
//
// Never log cloud secrets, access tokens, or device local keys.
package logging
