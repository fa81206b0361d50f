// Package sim provides the discrete-event engine for the Kademlia keyword-search simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - node.go: a DHT participant and its message dispatch
//   - lookup.go: the iterative lookup every operation begins with
//   - store.go / query.go: what an operation does once its lookup converges
//   - simulator.go: the event loop, bootstrap and traffic generation
//
// # Architecture
//
// Protocol state lives in sub-packages that know nothing about time:
//   - sim/kad/: identifiers, k-buckets, routing tables and FindOperation
//   - sim/cache/: per-node LRU result caches and the network-wide presence index
//   - sim/keyword/: conjunctive keys and query decomposition
//   - sim/workload/: datasets and weighted store/query generators
//   - sim/trace/: per-operation records
//
// Nodes reach the outside world only through Environment, which the
// Simulator implements. Messages travel as DeliveryEvents whose latency and
// loss come from a Transport.
//
// # Message Flow
//
// Every operation probes with ROUTE until its closest set converges. A node
// lookup then ends; a store negotiates space (STORE_SPACE_REQ/RESP) and
// places replicas (STORE/STORE_RESP); a query part asks the closest set with
// FINDVALUE. A probed node holding the queried key in its cache answers with
// RETURNVALUE_FROM_CACHE and the part ends early.
package sim
