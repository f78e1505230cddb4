// Package integration contains the list synchronization bounded context.
// It keeps an externally owned shopping list in step with an internally owned
// structured list.
//
// Key concepts:
//   - ListBinding: which internal list is paired with which external snapshot and command endpoints
//   - ListMapping: persisted 1:1 identity map between internal and external item ids, plus pending creates
//   - ExternalItem: an item as reported by the external snapshot
//   - CommandTransport: port for reading snapshots and writing side-effecting commands
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
