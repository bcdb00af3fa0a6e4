// Package worker runs background jobs one at a time.
//
// Submissions wait in a bounded FIFO channel. For each job the worker reserves
// its own database session, marks the job running, invokes the work function
// with a progress sink and finally records success (committing the session)
// or failure (rolling it back). Progress reports are persisted immediately so
// pollers see them; each report first commits whatever the pipeline wrote so
// far, which keeps the job row write from waiting on the pipeline's own
// transaction.
//
// Cancellation is soft: a canceled job keeps running to completion and its
// terminal update is ignored by the job store.
package worker
