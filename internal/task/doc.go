// Package task runs background jobs through a pluggable broker and records
// their queue-side state in a result backend. It also holds the two job
// types the file server dispatches: single-file processing and batch
// orchestration.
//
// Delivery is at-least-once. Workers acknowledge a job only after its
// outcome has been recorded, so a crash mid-job leads to redelivery on
// brokers that support it.
package task
