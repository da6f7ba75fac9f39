// Package analysis locates baselines, applies baseline correction and summarizes selected
// ranges of a canonical table.
//
// A corrected table has its time axis re-zeroed at t0 and scaled to the configured unit,
// every frequency and dissipation series shifted so the baseline mean sits at zero, and
// dissipation expressed in units of 1e-6. Range statistics convert dissipation back to
// absolute units before they are persisted.
package analysis
