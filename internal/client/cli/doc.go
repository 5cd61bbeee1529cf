// Package cli implements the FlockSync command-line client.
//
// Every command is a one-shot process over the same local engine the mobile
// apps embed: records are created locally first, sync uploads them, and the
// daemon keeps a device continuously reconciled. The signed-in session is
// persisted in the local store, so commands keep working offline once a
// member has logged in.
//
// Command tree:
//
//	register, login
//	add note|prayer|verse
//	list, sync, engage, watch
//	calendar sync|remove|export
//	remind set|clear
//	cache stats|evict
//	daemon
package cli
