package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipList_PutGetOverwrite(t *testing.T) {
	sl := NewSkipList()

	sl.Put([]byte("key1"), []byte("value1"))
	sl.Put([]byte("key2"), []byte("value2"))
	sl.Put([]byte("key3"), []byte("value3"))

	value, found := sl.Get([]byte("key1"))
	require.True(t, found)
	require.Equal(t, "value1", string(value))

	_, found = sl.Get([]byte("missing"))
	require.False(t, found)

	sl.Put([]byte("key1"), []byte("updated"))
	value, found = sl.Get([]byte("key1"))
	require.True(t, found)
	require.Equal(t, "updated", string(value))
}

func TestSkipList_IterationIsAscending(t *testing.T) {
	sl := NewSkipList()
	sl.Put([]byte("c"), []byte("3"))
	sl.Put([]byte("a"), []byte("1"))
	sl.Put([]byte("b"), []byte("2"))

	var keys []string
	it := sl.NewIterator()
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestSkipList_SizeAccruesOnlyOnInsert(t *testing.T) {
	sl := NewSkipList()
	sl.Put([]byte("k"), []byte("aaa"))
	afterInsert := sl.Size()
	require.Equal(t, int64(4), afterInsert) // len("k") + len("aaa")

	sl.Put([]byte("k"), []byte("a")) // overwrite, shorter value
	require.Equal(t, afterInsert, sl.Size(), "overwrite must not re-accrue size")
}

func TestSkipList_ManyKeysStayOrdered(t *testing.T) {
	sl := NewSkipList()
	n := 5000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key%06d", (i*7919)%n))
		sl.Put(key, []byte("v"))
	}

	var prev []byte
	count := 0
	it := sl.NewIterator()
	for it.Next() {
		if prev != nil {
			require.True(t, string(prev) < string(it.Key()), "keys must be strictly ascending")
		}
		prev = append([]byte{}, it.Key()...)
		count++
	}
	require.Equal(t, n, count)
}
