// Package output drives one collective output event: it agrees on the
// global block layout, reconciles the variable catalog across ranks,
// stages every variable into the global dataset order and writes the
// container file, with rank 0 acting as the file owner.
//
// All ranks call Write with their locally owned blocks. The call is
// collective: every rank enters the same exchanges in the same order, and
// either every rank returns the same filename or every rank returns an
// error for the event.
package output
