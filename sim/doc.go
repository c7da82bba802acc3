// Package sim provides the deterministic world that runs distributed
// programs under a single virtual clock.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - world.go: World lifecycle (configure → Start → Step/RunFor/RunUntil → Stop)
//   - faults.go: the fault surface adversary programs reach through the runtime
//   - logging.go: the logrus hook that turns log entries into the event log
//
// # Architecture
//
// The sim package wires together sub-packages that know nothing of the World:
//   - sim/core/: time points, actors, partitioned randomness, digests
//   - sim/timemodel/: latency and backoff models (crazy, calm)
//   - sim/process/: cooperative fibers, futures, quorums, mutexes
//   - sim/network/: links, packets, transport sockets
//   - sim/fs/, sim/db/: crash-surviving disk and a WAL-backed key-value store
//   - sim/server/: hosts that launch, crash, and reboot programs
//   - sim/rpc/: JSON RPC over the simulated transport
//   - sim/history/, sim/lincheck/: call recording and linearizability checks
//   - sim/trace/: text event log, pcap export, run summaries
//   - sim/adversary/: fault loops and Lua-scripted strategies
//
// Every random draw comes from one seeded source, and only one actor runs at a
// time, so a seed fully determines a run and its digest.
package sim
