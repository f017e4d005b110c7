// Package logging provides structured logging for the nxqos tooling.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the compiler and deployer. It provides both general
// logging functions and specialized functions for device-interaction logging.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (request payloads, retry attempts)
//   - Info: Normal operations (deployments, state transitions)
//   - Warn: Non-fatal issues (rejected commands, retries, verify mismatches)
//   - Error: Fatal issues (rollback failures, unreachable devices)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Policy deployed",
//	    zap.String("host", "192.168.1.100"),
//	    zap.String("policy", "campus-qos"),
//	    zap.Int("commands", 42),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
// Device Interaction Logging:
//
//	logging.LogRPCRequest(host, "cli_conf", len(commands))
//	logging.LogRPCResponse(host, statusCode, bodyLen)
//	logging.LogCommandRejected(host, command, code, message)
//
// Deployment Lifecycle Logging:
//
//	logging.LogStateTransition(host, policy, "applying", "verifying")
//
// # Configuration
//
// CLI commands are silent by default; logging activates only when the
// NXQOS_LOG_LEVEL environment variable is set (or a level is passed to
// Initialize explicitly):
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Log output goes to stderr so it never interleaves with command previews
// or deployment reports on stdout.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
