// Package dataprocessing turns raw QCM-D exports into canonical tables.
//
// # Supported inputs
//
// Four instrument layouts are recognized:
//
//   - Next: absolute frequency and dissipation, Frequency_k/Dissipation_k columns
//   - QCM-I: absolute values in "Channel A ..." columns
//   - QSense: shifts normalized by overtone number, dissipation in units of 1e-6
//   - AWSensors: the same shift convention as QSense, up to the 11th overtone
//
// Files arrive as .csv, tab separated .txt, .xlsx/.xlsm workbooks (read with excelize)
// or binary .qsd containers (decoded by package qsd).
//
// # Normalization
//
// Adapt renames vendor columns onto the canonical schema and, for delta instruments,
// rescales dissipation, multiplies frequencies by their overtone number and adds the
// measured calibration offsets. Files that already carry the canonical layout are read as
// they are, so normalizing a normalized file changes nothing.
//
//	n := dataprocessing.NewNormalizer(dataprocessing.NormalizerConfig{
//	    Mode:    domain.CalibrationMeasured,
//	    Offsets: calibration.NewOffsetStore(paths.OffsetFile, logger),
//	}, logger)
//	res, err := n.Normalize(ctx, "raw_data/run1.csv", domain.DeviceQSense)
package dataprocessing
