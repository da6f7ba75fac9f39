// Package exporter persists the results of the QCM-D pipeline.
//
// This package contains four main components:
//
// CSVWriter: Core CSV writing functionality with support for headers, streaming,
// UTF-8 BOM for Excel compatibility and atomic row replacement in shared result files.
//
// TableExporter: Writes canonical tables, the "Formatted-" copies of raw exports.
// Unmeasured overtone slots and missing samples are written as empty cells.
//
// StatsStore: Keeps the range statistics files, one frequency and one dissipation
// file per data format. Saving a range replaces the rows previously saved for the same
// (range_label, data_source, overtone).
//
// ModelOutputStore: Keeps one file per physical model, with one block of rows per
// (range_name, data_source).
//
// WriteParquet and ReadParquet archive canonical tables in a columnar, snappy
// compressed form.
//
// Example usage:
//
//	paths := config.NewPaths("/data/qcm")
//
//	// Save the formatted table and its archive
//	tables := exporter.NewTableExporter(paths)
//	path, err := tables.WriteCanonical(dataprocessing.FormattedName(raw), table)
//	err = exporter.WriteParquet(paths.GetArchivePath(path), table)
//
//	// Persist range statistics
//	stats := exporter.NewStatsStore(paths)
//	err = stats.Save("clean", rows)
package exporter
