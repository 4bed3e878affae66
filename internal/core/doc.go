// Package core provides the business logic for CSV data-quality analysis.
//
// It has no storage, transport or UI dependencies. Storage backends plug in
// through [ResultStore] and [DatasetStore].
//
// # Pipeline
//
// An [Analyzer] is bound to one [Dataset]. [Analyzer.Analyze] runs:
//
//  1. Load: the file is read into a [Table]. UTF-8 is tried first (a BOM is
//     stripped); bytes that are not valid UTF-8 are decoded as Windows-1251.
//  2. Check: [CheckMissingValues], [CheckDuplicateRows] and
//     [CalculateStatistics] run over the same table.
//  3. Persist: the three payloads replace the dataset's previous checks in
//     one transaction, and the report is upserted.
//
// Re-running an analysis on an unchanged file leaves exactly three check
// records and one report with identical contents.
//
// # Service
//
// [Service] registers CSV files as datasets and drives status transitions:
// uploaded, processing, then completed or failed. At most one analysis per
// dataset runs at a time, and an [AnalysisLimiter] caps the global count.
//
// # Error Handling
//
// Analyze returns a [*LoadError], [*AnalysisError] or [*PersistenceError].
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - FILE001-FILE006: file errors (size, missing, encoding, format)
//   - ANA001-ANA002: analysis errors (empty file, system busy)
//   - DS001-DS003: dataset errors (not found, in progress, no report)
//   - DB001-DB005: database errors (connection, timeout, constraints)
package core
