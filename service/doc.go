// Package service is the write entry point of the engine. It owns the
// ordering of one command's side effects: sequence number, WAL
// append, book mutation, outbox event, and (for cancels) retirement
// of the removed order into the reclamation ring.
package service
