// Package cluster holds the wire types and the HTTP/JSON client shared by the
// shard and router processes.
//
// # Wire protocol
//
// Every endpoint answers with a JSON envelope:
//
//	{"result": <payload or null>, "error": "<optional message>"}
//
// Shards serve two read-only queries:
//
//	GET /range          -> {"result": {"shardId":0,"start":..,"end":..,"length":..,"offset":..}}
//	GET /query?index=N  -> {"result": {"index":N,"start":..,"end":..,"duration":..}}
//	                       404 {"result": null} when N is outside the shard
//
// # Errors
//
// Client calls classify failures so that callers can tell them apart with
// errors.Is and errors.As:
//   - *TransportError: the peer could not be reached or the per-call timeout
//     fired. Retryable.
//   - *StatusError: the peer answered with a non-2xx status. A 404 matches
//     ErrNotFound.
//   - ErrMalformedResponse: a 2xx response whose result is missing or invalid.
//
// Every exchange is bounded by the Client's timeout (DefaultTimeout unless
// configured); no call is retried here.
//
// # Topology
//
// Routers learn shard locations from static configuration, either repeated
// "id=addr" flags (ParseTarget) or a YAML file (LoadTopology).
package cluster
