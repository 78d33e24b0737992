// Package credentials loads and manages upstream credential bundles.
//
// A credential bundle is a set of named cookie values exported from an
// authenticated browser session. Bundles are stored as JSON files in one
// of two shapes, both accepted transparently:
//
//	{"__Secure-1PSID": "...", "__Secure-1PSIDTS": "..."}
//
// or the record list produced by browser cookie exporters:
//
//	[{"name": "__Secure-1PSID", "value": "..."}, ...]
//
// A bundle is only usable if it contains the primary session token
// (PrimaryToken) after normalization. Bundles are re-read from disk on
// every (re)connection, so replacing the file on disk is enough to pick
// up fresh cookies.
//
// The package also provides a Rotator over multiple bundle files for
// spreading load across accounts, and a Watcher that reports on-disk
// changes so the session layer can invalidate stale connections.
package credentials
