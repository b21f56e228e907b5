package strategy

import (
	"iter"
	"math/rand/v2"
	"unicode/utf8"
)

type runeStrategy struct {
	alphabet []rune
}

// Runes draws characters from alphabet. An empty alphabet is permissive:
// any Unicode scalar value, weighted toward printable ASCII.
func Runes(alphabet string) Strategy[rune] {
	return runeStrategy{alphabet: []rune(alphabet)}
}

func (s runeStrategy) Draw(r *rand.Rand) Tree[rune] {
	if len(s.alphabet) > 0 {
		return s.indexTree(r.IntN(len(s.alphabet)))
	}
	return permissiveTree(drawPermissive(r))
}

func (s runeStrategy) indexTree(i int) Tree[rune] {
	return NewTree(s.alphabet[i], func() iter.Seq[Tree[rune]] {
		return func(yield func(Tree[rune]) bool) {
			for c := range shrinkInt(int64(i), 0) {
				if !yield(s.indexTree(int(c))) {
					return
				}
			}
		}
	})
}

func drawPermissive(r *rand.Rand) rune {
	switch r.IntN(4) {
	case 0, 1:
		return rune(0x20 + r.IntN(0x7f-0x20))
	case 2:
		return rune(r.IntN(0x800))
	default:
		for {
			c := rune(r.IntN(utf8.MaxRune + 1))
			if utf8.ValidRune(c) {
				return c
			}
		}
	}
}

// simplestRune is where permissive characters shrink to.
const simplestRune = '0'

func permissiveTree(c rune) Tree[rune] {
	if c == simplestRune {
		return Leaf(c)
	}
	return NewTree(c, func() iter.Seq[Tree[rune]] {
		return func(yield func(Tree[rune]) bool) {
			yield(Leaf(rune(simplestRune)))
		}
	})
}

// Text draws strings whose characters come from runes. Sizes count
// characters, not bytes.
func Text(runes Strategy[rune], sizes Sizes) (Strategy[string], error) {
	chars, err := Lists(runes, sizes, nil)
	if err != nil {
		return nil, err
	}
	return Map(chars, func(rs []rune) string { return string(rs) }), nil
}
