// Package server exposes the game over HTTP and WebSocket.
//
// A Hub owns every client connection and implements game.Notifier, so room
// events reach exactly the connections subscribed to that room. The Gateway
// decodes inbound frames into registry operations and answers failures with
// an error event to the sender only. Handler serves the JSON API, the game
// page and the WebSocket upgrade, and NewRouter mounts them on chi.
package server
