// Package schedule decides which meetings get notified on a run and
// drives the send/commit cycle.
//
// One invocation is single-threaded and run-to-completion: fetch records,
// select candidates, deliver sequentially, commit confirmed successes to
// the ledger in a single write. Concurrent invocations are not supported;
// the external trigger (launchd/cron) is assumed to never overlap runs.
package schedule
