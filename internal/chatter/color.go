package chatter

import (
	"math/big"
	"sync"
)

// SelfHighlightColor marks mentions of the local user.
const SelfHighlightColor = "#FFB300"

// Palette holds the username colors; a name always maps to the same entry.
var Palette = []string{
	"#E53935", "#D81B60", "#8E24AA", "#5E35B1",
	"#3949AB", "#1E88E5", "#039BE5", "#00ACC1",
	"#00897B", "#43A047", "#7CB342", "#F4511E",
}

var (
	hashBase    = big.NewInt(31)
	hashModulus = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 53), big.NewInt(1))
)

var colors = struct {
	sync.Mutex
	byName map[string]string
}{byName: make(map[string]string)}

// UsernameHash is a polynomial rolling hash (base 31) over the UTF-8 bytes of
// name, reduced modulo 2^53-1. It has no seed and is stable across runs.
func UsernameHash(name string) int64 {
	h := new(big.Int)
	c := new(big.Int)
	for i := 0; i < len(name); i++ {
		h.Mul(h, hashBase)
		h.Add(h, c.SetInt64(int64(name[i])))
		h.Mod(h, hashModulus)
	}
	return h.Int64()
}

// ColorIndex maps name onto Palette.
func ColorIndex(name string) int {
	n := int64(len(Palette))
	return int(((UsernameHash(name) % n) + n) % n)
}

// ColorFor returns the palette color of name. Results are memoized for the
// lifetime of the process.
func ColorFor(name string) string {
	colors.Lock()
	defer colors.Unlock()
	if c, ok := colors.byName[name]; ok {
		return c
	}
	c := Palette[ColorIndex(name)]
	colors.byName[name] = c
	return c
}
