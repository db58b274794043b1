// Package format turns raw scanned items into export-ready records and
// derives the column set used by tabular consumers.
package format
