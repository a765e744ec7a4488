// Package pipeline drives a screening run: it enumerates input files, skips
// the ones a checkpoint already covers, and then processes the rest in
// sequential file-batches (ingest → predict → append → checkpoint).
//
// The only contract to implement is Scorer (Predict).
// This keeps the pipeline swappable and testable.
package pipeline
