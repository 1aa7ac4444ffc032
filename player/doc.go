// Package player holds the domain types shared by the playback packages:
// segment identities, the desired-state tuple derived from the external
// player state, the per-segment state machine, errors and configuration.
package player
