// Package pipeline runs the concurrent annotation stage: a bounded WorkQueue
// feeds N stateless workers, and a single Collector serializes their unordered
// results into a spill file for the external sort.
//
// The queues are explicit values handed to the workers and the collector.
// End of work is an explicit Job variant; exactly one is pushed per worker.
package pipeline
