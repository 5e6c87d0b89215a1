// Package app provides the application service layer.
//
// Service is the single context object for the monitor: it owns persistence, broadcasting and
// alert delivery, and is shared by the HTTP handlers and the Scheduler. Depends on domain
// interfaces, not concrete adapters.
package app
