// Package log provides slog loggers that redact secrets before output.
//
// sitewatch handles a few kinds of secrets: webhook URLs (which embed their
// own credentials), webhook signing secrets, and credentials that users put
// into start URLs. SecureHandler masks them wherever they appear as log
// attributes:
//   - attributes whose key names a secret (password, token, webhook_url, ...)
//   - values that look like credentials (bearer tokens, JWTs, webhook URLs)
//   - user info passwords and credential query parameters inside URLs, which
//     are masked in place so the rest of the URL stays readable
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("alert sent", "webhook_url", cfg.WebhookURL) // webhook_url=***REDACTED***
package log
