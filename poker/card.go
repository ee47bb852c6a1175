package poker

import (
	"fmt"
	"strings"
)

// Card packs rank and suit the same way the hand evaluator expects them:
//
//	bits 16-28: rank bit, bits 12-15: suit, bits 8-11: rank, bits 0-5: rank prime
type Card int32

var (
	intRanks [13]int32
	strRanks = "23456789TJQKA"
	primes   = []int32{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41}
)

var (
	charRankToIntRank = map[uint8]int32{}
	charSuitToIntSuit = map[uint8]int32{
		's': 1, // spades
		'h': 2, // hearts
		'd': 4, // diamonds
		'c': 8, // clubs
	}
	intSuitToCharSuit = "xshxdxxxc"
)

var prettySuits = map[int32]string{
	1: "♠", // spades
	2: "❤", // hearts
	4: "♦", // diamonds
	8: "♣", // clubs
}

func init() {
	for i := 0; i < 13; i++ {
		intRanks[i] = int32(i)
	}

	for i := range strRanks {
		charRankToIntRank[strRanks[i]] = intRanks[i]
	}
}

func newCard(rankInt int32, suitInt int32) Card {
	rankPrime := primes[rankInt]

	bitRank := int32(1) << uint32(rankInt) << 16
	suit := suitInt << 12
	rank := rankInt << 8

	return Card(bitRank | suit | rank | rankPrime)
}

// NewCard builds a card from its two-character form ("Ah", "Td").
// It panics on malformed input; use ParseCard for untrusted strings.
func NewCard(s string) Card {
	c, err := ParseCard(s)
	if err != nil {
		panic(err)
	}
	return c
}

func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid card [%s]", s)
	}
	rankInt, ok := charRankToIntRank[s[0]]
	if !ok {
		return 0, fmt.Errorf("invalid card rank in [%s]", s)
	}
	suitInt, ok := charSuitToIntSuit[s[1]]
	if !ok {
		return 0, fmt.Errorf("invalid card suit in [%s]", s)
	}
	return newCard(rankInt, suitInt), nil
}

// NewCardFromByte is the inverse of GetByte.
func NewCardFromByte(cardByte uint8) (Card, error) {
	rankInt := int32(cardByte >> 4)
	suitInt := int32(cardByte & 0xF)
	if rankInt > 12 {
		return 0, fmt.Errorf("invalid card byte 0x%02x", cardByte)
	}
	if _, ok := prettySuits[suitInt]; !ok {
		return 0, fmt.Errorf("invalid card byte 0x%02x", cardByte)
	}
	return newCard(rankInt, suitInt), nil
}

func (c Card) String() string {
	return string(strRanks[c.Rank()]) + string(intSuitToCharSuit[c.Suit()])
}

func (c Card) Rank() int32 {
	return (int32(c) >> 8) & 0xF
}

func (c Card) Suit() int32 {
	return (int32(c) >> 12) & 0xF
}

func (c Card) GetByte() uint8 {
	rank := c.Rank()
	suit := c.Suit()
	b := uint8((rank << 4) | suit)
	return b
}

func (c Card) Pretty() string {
	return fmt.Sprintf("%s%s", string(strRanks[c.Rank()]), prettySuits[c.Suit()])
}

func PrintCards(cards []Card) string {
	var b strings.Builder
	b.Grow(32)
	fmt.Fprintf(&b, "[")
	for _, c := range cards {
		fmt.Fprintf(&b, " %s ", c.Pretty())
	}
	fmt.Fprintf(&b, "]")
	return b.String()
}
