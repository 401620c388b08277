// Package writers renders the final VCF and owns the output sinks.
//
// Design:
//   • Emit writes the header, then the sorted records, in one pass.
//   • A file sink is a temp file next to the target; only Commit makes it visible.
//   • A broken pipe on stdout (e.g. `| head`) is not an error.
package writers
