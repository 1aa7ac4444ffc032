// Package cache keeps decoded PCM for recently played segments so that
// revisiting one does not decode it again. It has an in-memory LRU level and
// an optional zstd-compressed disk level.
package cache
