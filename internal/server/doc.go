// Package server exposes the engine over HTTP: prompt submission, a
// websocket progress feed, a liveness endpoint, and CRUD for stored
// workflow definitions. The engine itself stays ignorant of transport;
// everything here funnels into the same builder, dag, and executor
// packages the CLI uses.
package server
