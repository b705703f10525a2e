// Package app wires the engine together: logger construction, manifest and
// workflow loading, registry population and validation, and the two run
// modes (one-shot execution and the API server). Everything the CLI does
// goes through an App instance, so tests can embed one with an isolated
// log stream.
package app
