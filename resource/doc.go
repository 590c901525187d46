// Package resource provides the handle table for opaque FFI values.
//
// Opaque values never cross the boundary as bytes. The side that creates one
// keeps it in a table and hands the other side an integer handle:
//
//	own      - ownership transfer (the handle is removed on lift)
//	borrow   - temporary access for one call (the handle stays valid)
//	drop     - explicit destruction through the __drop entry point
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	handle := table.Insert(typeID, ptr)
//	value, ok := table.GetTyped(handle, typeID)
//	value, ok = table.Remove(handle)
//
// Handle 0 is reserved and always invalid, so a zeroed out-pointer never
// aliases a live value. Handles carry the generation of their slot: once
// dropped, a handle stops resolving even after the slot is reused.
//
// # Borrows
//
// Borrow pins a handle for the duration of a call; Remove refuses to drop a
// handle with outstanding borrows.
//
// # Observers
//
// Subscribe an Observer to track lifecycle events, e.g. to log leaks when a
// library is closed with live handles.
package resource
