// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /ws/:run_id to receive an initial_state snapshot
// followed by state_change and progress updates for one run.
package websocket
