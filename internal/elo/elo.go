// Package elo implements the standard Elo rating math applied when a
// session settles.
package elo

import "math"

// DefaultK is the K-factor applied when callers have no stronger opinion.
const DefaultK = 32

// Expected returns the expected score of the player rated ra against rb.
func Expected(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// Update applies the symmetric Elo update for a single game. scoreA is the
// result from player A's perspective (1 win, 0.5 draw, 0 loss).
func Update(ra, rb, scoreA, k float64) (float64, float64) {
	ea := Expected(ra, rb)
	eb := Expected(rb, ra)
	rpa := ra + k*(scoreA-ea)
	rpb := rb + k*((1-scoreA)-eb)
	return rpa, rpb
}
