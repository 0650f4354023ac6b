// Package ingest runs project ingestion jobs: scan, store chunks, record
// per-file status.
//
// # Basic Usage
//
//	p := ingest.New(parser, index, ledger, ingest.DefaultConfig())
//	defer p.Close()
//
//	resp, err := p.Submit(ctx, ingest.SubmitRequest{
//	    ProjectPath: "/path/to/project",
//	    ProjectID:   "my-project",
//	})
//
//	snap, err := p.Status(resp.JobID)
//
// # Pipeline
//
// A job moves pending → processing → completed or failed. The scan result is
// split into batches of Config.BatchSize files. Each batch stores its chunks
// through a worker pool bounded to MaxWorkers, then updates the ledger for
// every file in the batch before the next batch is dispatched, so at most one
// batch of chunks is in flight.
//
// File-level failures (unreadable file, total parse failure, index or ledger
// error) are recorded in the job's error list and count as failed files.
// Only a failure of the scan itself fails the job.
//
// # Job Retention
//
// Jobs live in a JobStore. JobStore.Run evicts terminal jobs older than the
// retention period and caps the number of retained jobs.
package ingest
