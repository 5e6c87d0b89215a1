// Package vitals implements the monitoring core: status derivation, alert maintenance,
// the physiological simulator, and the Monitor that owns the in-memory record store.
//
// Monitor serializes every read-modify-write behind one mutex. Readers always receive deep copies.
package vitals
