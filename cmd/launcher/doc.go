// Package main (cmd/launcher) starts a local node from its data directory.
//
// On start the launcher resolves the data directory, loads or generates the
// node identity, copies the bundled config.toml into the data directory when
// missing, loads schemas/schema.lock from the resource directory and boots
// the node. Once the node is serving, the launcher waits for SIGINT/SIGTERM
// or for the node to exit on its own, then shuts it down.
//
// Log output is off by default. Set NODE_LOG to a level name (debug, info,
// warn, error) or pass --log-debug to turn it on.
//
// Example usage:
//
//	launcher --dev --resources=./resources
//
//	HTTP_PORT=3030 NODE_LOG=debug launcher --data-dir=/var/lib/node
package main
