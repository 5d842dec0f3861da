// Package game implements the room state machine for two-player
// N-in-a-row matches: win detection, per-room turn timers, and the
// registry that owns every live room.
//
// A Room serializes its own operations. The Registry serializes creation,
// lookup and removal of rooms; when both locks are needed the registry lock
// is taken first. Outbound events are delivered through a Notifier after the
// room's state lock is released.
package game
