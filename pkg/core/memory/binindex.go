package memory

import (
	"sync"

	"github.com/google/btree"

	"bf16lut/pkg/common"
)

// Item orders entries by the low edge of their domain.
type Item struct {
	Start float64
	Entry common.Entry
}

func (i Item) Less(than btree.Item) bool {
	return i.Start < than.(Item).Start
}

// BinIndex routes a value to the entry whose domain starts at or below it.
// It serves equal-count tables, whose bin edges the lookup formula does not
// reproduce.
type BinIndex struct {
	tree *btree.BTree
	lock sync.RWMutex
}

func NewBinIndex(degree int) *BinIndex {
	return &BinIndex{
		tree: btree.New(degree),
	}
}

// Load replaces the index contents with entries.
func (bi *BinIndex) Load(entries []common.Entry) {
	bi.lock.Lock()
	defer bi.lock.Unlock()

	bi.tree.Clear(false)
	for _, e := range entries {
		bi.tree.ReplaceOrInsert(Item{Start: e.DomainStart, Entry: e})
	}
}

// Get returns the entry with the greatest domain start <= x. Values below
// the first entry resolve to it.
func (bi *BinIndex) Get(x float64) (common.Entry, bool) {
	bi.lock.RLock()
	defer bi.lock.RUnlock()

	var found *Item
	bi.tree.DescendLessOrEqual(Item{Start: x}, func(i btree.Item) bool {
		item := i.(Item)
		found = &item
		return false
	})
	if found == nil {
		first := bi.tree.Min()
		if first == nil {
			return common.Entry{}, false
		}
		return first.(Item).Entry, true
	}
	return found.Entry, true
}

func (bi *BinIndex) Count() int {
	bi.lock.RLock()
	defer bi.lock.RUnlock()
	return bi.tree.Len()
}

func (bi *BinIndex) Type() string {
	return "BTree"
}
