// Package core holds the message domain model, the contracts implemented by
// storage, queue and publishing adapters, the error taxonomy shared by every
// layer, and configuration resolution.
//
// Packages that process webhook events (envelope, content, ingest, worker)
// depend only on the contracts declared here.
package core
