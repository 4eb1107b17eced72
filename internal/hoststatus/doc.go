// Package hoststatus tracks which storage hosts are unusable for the
// current run.
//
// A Tracker is seeded once at run start (optionally from the hosting
// service's status endpoint via FetchSeed) and then shared by every download
// worker. When a transfer discovers a dead host, MarkOffline makes every
// later item on that host short-circuit without a network attempt.
package hoststatus
