// Package writers turns prediction results into serialized outputs.
//
// Design:
//   • Sinks own the run's output file: header policy, torn-tail repair on
//     resume, and an fsync after every appended batch.
//   • Formats are looked up in a registry (tsv, jsonl).
//   • JSON/JSONL go through pkg/api (v1) for a stable wire format.
//   • Report writers serve the single-file predict tool.
package writers
