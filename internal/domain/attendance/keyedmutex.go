package attendance

import (
	"hash/fnv"
	"sync"
)

// keyedMutex serializes work per key through a sharded lock table. Two keys
// hashing to the same shard contend, which is acceptable: correctness only
// requires that equal keys serialize.
type keyedMutex struct {
	shards []sync.Mutex
}

func newKeyedMutex(shardCount int) *keyedMutex {
	if shardCount < 1 {
		shardCount = 1
	}
	return &keyedMutex{shards: make([]sync.Mutex, shardCount)}
}

func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.shards[h.Sum32()%uint32(len(k.shards))]
	m.Lock()
	return m.Unlock
}
