// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing to the diagnostic channel (stderr),
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Info, InfoKV, WarnKV, etc.).
//
// Services accept a context and extract the logger from it, so every log line
// produced while packaging an update carries the stage that emitted it.
// Standard output stays reserved for the progress line printed by the packager.
package logger
