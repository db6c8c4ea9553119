package dispatch

import (
	"sort"
	"strconv"

	"github.com/OneOfOne/xxhash"
)

// stableOrder sorts the n dispatch item indices by the rendezvous digest
// of (uid, item index) so that, when several dispatch_configs entries
// match the same message, destinations are visited in an order derived
// from the uid, the same across processes, rather than in config order.
func stableOrder(uid string, n int) []int {
	type scored struct {
		idx    int
		digest uint64
	}
	items := make([]scored, n)
	for i := 0; i < n; i++ {
		digest := xxhash.ChecksumString64S(uid+"#"+strconv.Itoa(i), seed)
		items[i] = scored{idx: i, digest: digest}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].digest < items[j].digest })
	out := make([]int, n)
	for i, s := range items {
		out[i] = s.idx
	}
	return out
}

const seed = 0x5a17a9b1
