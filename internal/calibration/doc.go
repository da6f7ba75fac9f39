// Package calibration resolves the per-overtone reference values that turn instrument
// shifts back into absolute readings and that the physical models are evaluated against.
//
// Two sources exist. The theoretical table holds n times the nominal fundamental of a
// 5 MHz crystal and is embedded in the binary; it can be overridden by a file. Measured
// offsets live in a one-row CSV (a leading index column followed by canonical freq/dis
// columns) that users either paste by hand or that DeriveOffsets fills from a baseline.
//
// An overtone that was not selected has no offset at all. That is distinct from a measured
// offset of zero and is represented by domain.Offset.Set being false.
package calibration
