// Package microagg is a streaming aggregation engine for large Brazilian
// education survey microdata (ENEM student results and SAEB school
// assessments). It resolves logical fields against the surveys' shifting
// physical column names, reads zip, gzip or plain delimited files in
// fixed-size chunks, and reduces hundreds of millions of rows to small
// per-state or per-region statistical tables in bounded memory.
//
// The pkg tree holds the reusable building blocks (format sniffing,
// field catalogs, schema resolution, row filters, accumulators, output
// standardization and downstream rank analysis); internal/pipeline wires
// them into the extraction run driven by cmd/microagg.
package microagg
