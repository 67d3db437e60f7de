// Package server exposes form runtimes over HTTP. A Store holds the loaded
// schemas; every session is one runtime.Instance addressed by a uuid.
//
// Routes:
//
//	GET    /forms
//	GET    /forms/{formID}
//	POST   /forms/{formID}/sessions
//	GET    /sessions/{id}
//	PUT    /sessions/{id}/values/{field}
//	POST   /sessions/{id}/lookups/{field}/refresh
//	POST   /sessions/{id}/revalidate
//	POST   /sessions/{id}/submit
//	DELETE /sessions/{id}
//
// Mutating routes wait for the session to settle before answering, bounded by
// the settle timeout, so the returned state carries async validator and lookup
// results when they finish in time.
package server
