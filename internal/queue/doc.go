// Package queue provides the asynchronous job queue behind the dashboard's
// long-running operations (AI completions, report generation, email
// dispatch, data analysis).
//
// Callers register work functions by kind, submit payloads, and retrieve
// results by polling, blocking wait, or batch monitoring. A fixed pool of
// workers dispatches the highest-priority eligible job first, FIFO within a
// priority tier. Job state transitions are monotonic:
//
//	delayed -> waiting -> active -> completed | failed
//
// The queue is in-memory only: no write-ahead log, no cross-process
// coordination. Jobs do not survive a restart. Job timeouts are cooperative;
// a work function that ignores its context keeps running after the queue has
// recorded the timeout and failed the job.
package queue
