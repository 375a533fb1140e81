// Package scheduler registers jobs at a fixed cadence and dispatches their
// executions into the shared worker pool.
//
// The scheduler is trigger-only. It is responsible for:
//   - registering jobs (one cron entry each)
//   - computing tick times from the registration instant, offset and frequency
//   - handing each tick to the pool as one Supervisor.Trigger call
//
// Overlap handling and outcome tracking live in package execution.
package scheduler
