// Package subtitle implements the SRT cue model used throughout the
// pipeline: parsing, rendering, renumbering, balanced slicing for
// translation batches, and composition of the final bilingual ASS asset.
package subtitle
