// Package api serves the HTTP control surface for batch validation.
//
// # Routes
//
//   - POST /v1/batches: submit a batch (pipeline.Submission JSON). 202 with
//     {"status":"started","batchId":...}, 409 {"status":"already"} while
//     another batch runs, 400 {"status":"bad-request","error":...}.
//   - GET /v1/batches/current/events: NDJSON stream of the current (or most
//     recent) batch. Results already recorded are replayed first; the last
//     line is the summary.
//   - POST /v1/batches/current/cancel: {"status":"stopping"|"not-running"}.
//   - GET /v1/batches/last: summary of the last finished batch, or 404.
//   - GET /v1/healthz: liveness.
//
// Batches run on the server's base context, not the submitting request's,
// so a client may disconnect without aborting the batch.
package api
