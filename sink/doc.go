// Package sink implements the batched HTTP delivery engine: the outbound
// half of the connector.
//
// # Architecture
//
// Records flow through a single-owner pipeline:
//
//	Write(record) → MessageBuffer → [batch full] → flush
//	                                      │
//	                          build request (URL placeholders,
//	                          headers, bearer token, body)
//	                                      │
//	                                    send
//	                                      │
//	                          PolicyTable.Resolve(status)
//	                         ┌────────────┼────────────┐
//	                      success       retry         fail
//	                   clear buffer   scheduler    drop batch,
//	                                  delay, loop  surface error
//
// The retry loop is a plain synchronous state machine bounded by the
// configured maximum retry duration; there is no background dispatch. One
// writer owns one buffer, one credential cache, and one retry state, so no
// locking is needed within a writer. Independent writers share nothing.
//
// # Delivery guarantees
//
// At most one request is in flight per batch. Records are delivered in flush
// order and each rendered payload preserves insertion order. A terminally
// abandoned batch (fail action or retry deadline) is dropped and the error is
// returned to the caller; it is never re-attempted on a later flush.
package sink
