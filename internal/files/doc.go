// Package files discovers instrument exports and the canonical tables the
// normalizer wrote next to them.
//
//	discovery := files.NewDiscovery(paths.RootDir)
//	pending, err := discovery.Pending("raw_data")
//
// Pending lists the exports whose Formatted-* table is missing or stale, which is
// what the batch processor normalizes.
package files
