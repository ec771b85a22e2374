// Package logger builds log/slog loggers with environment defaults and
// request scoped attributes.
//
// New applies functional options; NewFromConfig reads APP_ENV, APP_NAME and
// LOG_LEVEL. Development logs are debug level text, staging and production
// logs are info level JSON. Values under keys such as password or token are
// masked. Context extractors add values such as the
// request id or client IP to every record logged with a context:
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "authcore"),
//	    logger.WithContextExtractors(
//	        logger.ContextValue("request_id", requestid.FromContext),
//	        logger.ContextValue("client_ip", clientip.IPFrom),
//	    ),
//	)
//	log.InfoContext(ctx, "login succeeded", logger.UserID(id))
package logger
