package game

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Thin adapter over the rules-engine library: position construction, square
// parsing, and the verbose move descriptors the HTTP surface exposes. All
// legality decisions belong to the library.

func startingFEN() string { return nchess.NewGame().FEN() }

func gameFromFEN(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opt), nil
}

// parseSquare maps "e2"-style coordinates onto the library square type.
func parseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return nchess.NoSquare, false
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(f-'a'), nchess.Rank(r-'1')), true
}

func colorName(c nchess.Color) string {
	if c == nchess.White {
		return "white"
	}
	return "black"
}

func pieceLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.King:
		return "k"
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	case nchess.Pawn:
		return "p"
	default:
		return ""
	}
}

// moveFlags mirrors the flag letters clients already parse: k/q castling,
// e en-passant capture, c plain capture, b two-square pawn push,
// p promotion, n otherwise.
func moveFlags(pos *nchess.Position, mv *nchess.Move) string {
	if mv.HasTag(nchess.KingSideCastle) {
		return "k"
	}
	if mv.HasTag(nchess.QueenSideCastle) {
		return "q"
	}
	var b strings.Builder
	switch {
	case mv.HasTag(nchess.EnPassant):
		b.WriteString("e")
	case mv.HasTag(nchess.Capture):
		b.WriteString("c")
	}
	piece := pos.Board().Piece(mv.S1())
	if piece.Type() == nchess.Pawn {
		dr := int(mv.S2().Rank()) - int(mv.S1().Rank())
		if dr == 2 || dr == -2 {
			b.WriteString("b")
		}
	}
	if mv.Promo() != nchess.NoPieceType {
		b.WriteString("p")
	}
	if b.Len() == 0 {
		return "n"
	}
	return b.String()
}

// describeMove builds the verbose descriptor for mv against the position it
// is played from.
func describeMove(pos *nchess.Position, mv *nchess.Move) LegalMove {
	piece := pos.Board().Piece(mv.S1())
	return LegalMove{
		Color: colorName(pos.Turn()),
		Piece: pieceLetter(piece.Type()),
		From:  mv.S1().String(),
		To:    mv.S2().String(),
		Flags: moveFlags(pos, mv),
		SAN:   nchess.AlgebraicNotation{}.Encode(pos, mv),
	}
}

func lastMove(g *nchess.Game) *nchess.Move {
	moves := g.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
