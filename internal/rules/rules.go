// Package rules holds the pure card logic: decoding ids into attributes and
// deciding which triples form a set. Nothing here keeps state.
package rules

const (
	// MinCard and MaxCard bound the card id domain.
	MinCard = 1
	MaxCard = 81

	attributeCount = 4
)

// Attributes are the four base-3 digits of (id-1), least significant first.
type Attributes struct {
	Number  int `json:"number"`
	Shape   int `json:"shape"`
	Shading int `json:"shading"`
	Color   int `json:"color"`
}

func (a Attributes) digits() [attributeCount]int {
	return [attributeCount]int{a.Number, a.Shape, a.Shading, a.Color}
}

// ID encodes the attributes back into a card id.
func (a Attributes) ID() int {
	id, pow := 0, 1
	for _, d := range a.digits() {
		id += d * pow
		pow *= 3
	}
	return id + 1
}

// ValidCard reports whether id is inside [MinCard, MaxCard].
func ValidCard(id int) bool {
	return id >= MinCard && id <= MaxCard
}

// CardAttributes decodes id. Callers must guard the range with ValidCard.
func CardAttributes(id int) Attributes {
	x := id - 1
	return Attributes{
		Number:  x % 3,
		Shape:   (x / 3) % 3,
		Shading: (x / 9) % 3,
		Color:   (x / 27) % 3,
	}
}

// IsSet reports whether every attribute is all-same or all-different
// across a, b and c.
func IsSet(a, b, c int) bool {
	da := CardAttributes(a).digits()
	db := CardAttributes(b).digits()
	dc := CardAttributes(c).digits()
	for i := 0; i < attributeCount; i++ {
		// all-same and all-different are exactly the triples summing to 0 mod 3
		if (da[i]+db[i]+dc[i])%3 != 0 {
			return false
		}
	}
	return true
}

// ThirdCard returns the unique card completing a set with a and b.
func ThirdCard(a, b int) int {
	da := CardAttributes(a).digits()
	db := CardAttributes(b).digits()
	var out [attributeCount]int
	for i := range out {
		if da[i] == db[i] {
			out[i] = da[i]
		} else {
			out[i] = 3 - da[i] - db[i]
		}
	}
	return Attributes{Number: out[0], Shape: out[1], Shading: out[2], Color: out[3]}.ID()
}

// FindSet scans every triple of cards in index order and returns the first set.
func FindSet(cards []int) ([3]int, bool) {
	n := len(cards)
	for i := 0; i < n-2; i++ {
		for j := i + 1; j < n-1; j++ {
			for k := j + 1; k < n; k++ {
				if IsSet(cards[i], cards[j], cards[k]) {
					return [3]int{cards[i], cards[j], cards[k]}, true
				}
			}
		}
	}
	return [3]int{}, false
}

// SetExists reports whether any triple in cards is a set. The scan is
// exhaustive; boards never exceed 18 cards.
func SetExists(cards []int) bool {
	_, ok := FindSet(cards)
	return ok
}
