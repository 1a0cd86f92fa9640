// Package orderkey generates sortable string keys for user-ordered
// collections. A new key can always be placed between two existing keys, so
// moving one item never rewrites its siblings.
//
// Keys use the alphabet a..z. Two keys compare as if the shorter one were
// padded on the right with 'a'.
package orderkey

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

const (
	minSymbol    byte = 'a'
	maxSymbol    byte = 'z'
	alphabetSize      = int(maxSymbol-minSymbol) + 1

	// Midpoint is the key of the first item in an empty collection.
	Midpoint = "n"
)

var (
	ErrInvalidKey = errors.New("orderkey: invalid key")
	ErrOutOfOrder = errors.New("orderkey: before does not sort before after")
	ErrNoRoom     = errors.New("orderkey: nothing sorts before key")
)

// Valid reports whether key is non-empty and uses only the key alphabet.
func Valid(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < minSymbol || key[i] > maxSymbol {
			return false
		}
	}
	return true
}

// Compare returns -1, 0 or +1 comparing a and b with the shorter key padded
// by the minimum symbol.
func Compare(a, b string) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := symbolAt(a, i, minSymbol), symbolAt(b, i, minSymbol)
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
	}
	return 0
}

// Generate returns a key that sorts strictly after before and strictly
// before after. An empty string stands for an absent neighbour.
func Generate(before, after string) (string, error) {
	if before != "" && !Valid(before) {
		return "", errors.Wrapf(ErrInvalidKey, "before %q", before)
	}
	if after != "" && !Valid(after) {
		return "", errors.Wrapf(ErrInvalidKey, "after %q", after)
	}

	switch {
	case before == "" && after == "":
		return Midpoint, nil
	case before == "":
		return head(after)
	case after == "":
		return tail(before), nil
	}

	if Compare(before, after) >= 0 {
		return "", errors.Wrapf(ErrOutOfOrder, "before %q, after %q", before, after)
	}
	return between(before, after), nil
}

// head places a key in front of after. One step down keeps keys short; the
// minimum symbol is never handed out on its own since nothing could precede it.
func head(after string) (string, error) {
	if strings.Trim(after, string(minSymbol)) == "" {
		return "", errors.Wrapf(ErrNoRoom, "after %q", after)
	}
	if first := after[0]; first > minSymbol+1 {
		return string(first - 1), nil
	}
	return midpoint("", after), nil
}

func tail(before string) string {
	last := before[len(before)-1]
	if last < maxSymbol {
		return before[:len(before)-1] + string(last+1)
	}
	return before + Midpoint
}

// between scans the keys padded to equal length (before with the minimum,
// after with the maximum) for the first position with room for a symbol.
func between(before, after string) string {
	n := max(len(before), len(after))
	for i := 0; i < n; i++ {
		lo := symbolAt(before, i, minSymbol)
		hi := symbolAt(after, i, maxSymbol)
		if int(hi)-int(lo) > 1 {
			return prefix(before, i) + string(lo+(hi-lo)/2)
		}
	}
	return midpoint(before, after)
}

// midpoint returns a key strictly between lo and hi, extending the length
// when the keys are adjacent. An empty hi is unbounded.
func midpoint(lo, hi string) string {
	if hi != "" {
		n := 0
		for n < len(hi) && symbolAt(lo, n, minSymbol) == hi[n] {
			n++
		}
		if n > 0 {
			return hi[:n] + midpoint(suffix(lo, n), hi[n:])
		}
	}

	l := int(symbolAt(lo, 0, minSymbol) - minSymbol)
	h := alphabetSize
	if hi != "" {
		h = int(hi[0] - minSymbol)
	}
	if h-l > 1 {
		return string(minSymbol + byte((l+h)/2))
	}
	if len(hi) > 1 && strings.Trim(hi[1:], string(minSymbol)) != "" {
		return hi[:1]
	}
	return string(symbolAt(lo, 0, minSymbol)) + midpoint(suffix(lo, 1), "")
}

// Sequence returns n ascending keys, each appended after the previous one.
func Sequence(n int) []string {
	keys := make([]string, 0, n)
	prev := ""
	for i := 0; i < n; i++ {
		if prev == "" {
			prev = Midpoint
		} else {
			prev = tail(prev)
		}
		keys = append(keys, prev)
	}
	return keys
}

// SortStable orders items by key, keeping the input order for equal keys.
func SortStable[T any](items []T, key func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(key(a), key(b))
	})
}

func symbolAt(key string, i int, pad byte) byte {
	if i < len(key) {
		return key[i]
	}
	return pad
}

func prefix(key string, n int) string {
	if n <= len(key) {
		return key[:n]
	}
	return key + strings.Repeat(string(minSymbol), n-len(key))
}

func suffix(key string, n int) string {
	if n >= len(key) {
		return ""
	}
	return key[n:]
}
