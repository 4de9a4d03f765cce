// Package logger wraps zap with a global sugared logger and context helpers.
//
// Services receive a context and pull their logger from it (FromContext),
// narrowing it with WithName and WithKV as they hand work to collaborators.
// Configure applies the level and output format read from settings.
package logger
