package utils

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	getHisto := func(K, Np int) (histo map[int]int) {
		pm := NewPartitionMap(Np, K)
		histo = make(map[int]int)
		for np := 0; np < pm.ParallelDegree; np++ {
			maxK := pm.GetBucketDimension(np)
			histo[maxK]++
		}
		return
	}
	getTotal := func(histo map[int]int) (total int) {
		for key, count := range histo {
			total += key * count
		}
		return
	}
	assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
	assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
	assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
	assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
	assert.Equal(t, 287, getTotal(getHisto(287, 32)))
	for n := 64; n < 4000; n++ {
		var (
			keys   [2]float64
			keyNum int
		)
		histo := getHisto(n, 32)
		for key := range histo {
			keys[keyNum] = float64(key)
			keyNum++
		}
		if keyNum == 2 {
			assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
		}
		assert.Equal(t, n, getTotal(histo))
	}

	// Bucket ownership round trip
	pm := NewPartitionMap(7, 100)
	for i := 0; i < 100; i++ {
		bn, min, max := pm.GetBucket(i)
		assert.True(t, min <= i && i < max)
		local, _, bn2 := pm.GetLocalIndex(i)
		assert.Equal(t, bn, bn2)
		assert.Equal(t, i, pm.GetGlobalIndex(local, bn))
	}
}

func TestMailBox(t *testing.T) {
	// Each shard posts its id to every other shard, then all receive
	var (
		NP = 4
		mb = NewMailBox[int](NP)
		wg = sync.WaitGroup{}
	)
	for pass := 0; pass < 3; pass++ { // Buffers must be reusable across passes
		for np := 0; np < NP; np++ {
			wg.Add(1)
			go func(np int) {
				defer wg.Done()
				for tgt := 0; tgt < NP; tgt++ {
					if tgt != np {
						mb.PostMessage(np, tgt, np)
					}
				}
				mb.DeliverMyMessages(np)
			}(np)
		}
		wg.Wait()
		for np := 0; np < NP; np++ {
			mb.ReceiveMyMessages(np)
			got := make(map[int]bool)
			for _, msg := range mb.ReceiveMsgQs[np].Cells() {
				got[msg] = true
			}
			assert.Equal(t, NP-1, len(got))
			assert.False(t, got[np])
			mb.ClearMyMessages(np)
		}
	}
}
