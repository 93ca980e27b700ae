// Package pipeline validates batches of candidate proxies under bounded
// concurrency.
//
// A batch is a list of [Item]s checked against one destination. Workers
// claim items one at a time, negotiate a tunnel, optionally probe it and
// close it, so a slow candidate never holds up the rest. Every item yields
// exactly one [Event], and every batch exactly one [Summary], including
// batches that are cancelled part way.
//
// Cancellation comes in two strengths. [Pipeline.Cancel] stops workers from
// claiming more items but lets in-flight attempts finish on their own
// timeout. Cancelling the context passed to Run aborts in-flight attempts as
// well. Either way, items nobody claimed are reported as [Skipped].
//
// Options.Timeout is a per-item budget: the connect, the handshake, every
// AUTO fallback and the probe all share it. After Cancel returns no item is
// claimed, so a cancelled batch finishes within one Timeout.
package pipeline
