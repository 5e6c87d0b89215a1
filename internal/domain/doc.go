// Package domain defines the vital-signs data model and the contracts between components.
//
// Types here mirror the persisted JSON document one-to-one. No I/O lives in this package.
package domain
