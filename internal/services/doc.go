// Package services defines the shared error taxonomy and context carriers
// used across pipeline components.
//
// Stage failures are wrapped with sentinel markers (ErrTransient, ErrFatal,
// ErrKilled, ErrValidation) so workers can classify outcomes with errors.Is
// without inspecting raw subprocess errors. Context helpers propagate job id,
// stage, slot, and correlation id for structured logging.
package services
