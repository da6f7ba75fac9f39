// Package qsd decodes the binary ".qsd" container written by QSense acquisition software.
//
// The layout is not documented. Every offset is relative to the last occurrence of the
// ASCII marker "XtalDriveTimeFloat", and a handful of fixed byte values are checked on the
// way so that an unexpected file version fails with a FORMAT error instead of producing
// garbage arrays:
//
//	marker+30        sensor count (1 or 4)
//	+4               sample count n of the first run
//	+4+4*sensors     0xee
//	+16              n+1
//	+4               optional 0x02 (skips 8 more bytes), then 0x01
//	+12              0x0b
//	+6               time f64[n], days since epoch
//
// followed by interleaved {count, f64[count]} runs of frequency and dissipation for every
// (sensor, overtone) pair. A zero count closes a sensor.
//
// Usage:
//
//	rec, err := qsd.Decode(buf)
//	if err != nil {
//		return err
//	}
//	for _, s := range rec.Series() {
//		...
//	}
package qsd
