package utils

import "fmt"

/*
	PartitionMap splits a contiguous index range (mesh points, edges) into
	ParallelDegree buckets with a maximum imbalance of one item. All sharded
	loops in the solver and integration packages address their work through
	one of these maps.
*/
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of each partition
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucket(index int) (bucketNum, min, max int) {
	// Initial guess assumes near-even distribution, then walk to the owner
	bucketNum = int(float64(pm.ParallelDegree*index) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= index && pm.Partitions[bucketNum][1] > index) {
		if pm.Partitions[bucketNum][0] > index {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return -1, 0, 0
		}
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (iMin, iMax int) {
	iMin, iMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bucketNum int) (dim int) {
	if bucketNum == -1 {
		dim = pm.MaxIndex
		return
	}
	i1, i2 := pm.GetBucketRange(bucketNum)
	dim = i2 - i1
	return
}

func (pm *PartitionMap) GetLocalIndex(globalIndex int) (local, dim, bucketNum int) {
	var (
		iMin, iMax int
	)
	bucketNum, iMin, iMax = pm.GetBucket(globalIndex)
	dim = iMax - iMin
	local = globalIndex - iMin
	return
}

func (pm *PartitionMap) GetGlobalIndex(localIndex, bucketNum int) (globalIndex int) {
	if bucketNum == -1 {
		globalIndex = localIndex
		return
	}
	globalIndex = pm.Partitions[bucketNum][0] + localIndex
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// Splits one dimension into ParallelDegree pieces, max imbalance of one
	var (
		Npart            = pm.MaxIndex / pm.ParallelDegree
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first buckets evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// DynBuffer is a growable message buffer, reused between exchanges to avoid
// re-allocation inside the parallel regions.
type DynBuffer[T any] struct {
	cells []T
}

func NewDynBuffer[T any](sizeHint int) *DynBuffer[T] {
	return &DynBuffer[T]{cells: make([]T, 0, sizeHint)}
}

func (db *DynBuffer[T]) Add(msg T)   { db.cells = append(db.cells, msg) }
func (db *DynBuffer[T]) Cells() []T  { return db.cells }
func (db *DynBuffer[T]) Reset()      { db.cells = db.cells[:0] }
func (db *DynBuffer[T]) Len() int    { return len(db.cells) }

/*
	MailBox is the cross-shard message exchange used for halo communication
	and for edge flux contributions landing in a point range owned by another
	goroutine shard. The usage pattern is:
		for range work {PostMessage}; DeliverMyMessages; barrier;
		ReceiveMyMessages; consume; ClearMyMessages
	Posting and receiving never block within a shard; delivery moves whole
	buffers through a channel per target shard.
*/
type MailBox[T any] struct {
	NP           int
	MessageChans []chan *DynBuffer[T]    // One for each shard
	PostMsgQs    []map[int]*DynBuffer[T] // One for each shard, key is target shard
	ReceiveMsgQs []*DynBuffer[T]         // One for each shard
	MailFlag     []bool                  // Shard has undelivered messages in its outbox
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([]chan *DynBuffer[T], NP),
		PostMsgQs:    make([]map[int]*DynBuffer[T], NP),
		ReceiveMsgQs: make([]*DynBuffer[T], NP),
		MailFlag:     make([]bool, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make(chan *DynBuffer[T], NP) // Worst case is all-to-all
		mb.PostMsgQs[n] = make(map[int]*DynBuffer[T])
		mb.ReceiveMsgQs[n] = NewDynBuffer[T](0)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myShard, targetShard int, msg T) {
	tgt, exists := mb.PostMsgQs[myShard][targetShard]
	if !exists {
		tgt = NewDynBuffer[T](0)
		mb.PostMsgQs[myShard][targetShard] = tgt
	}
	tgt.Add(msg)
	mb.MailFlag[myShard] = true
}

func (mb *MailBox[T]) DeliverMyMessages(myShard int) {
	if mb.MailFlag[myShard] {
		for targetShard, msgBuffer := range mb.PostMsgQs[myShard] {
			if msgBuffer.Len() == 0 {
				continue
			}
			if targetShard < 0 || targetShard > mb.NP-1 {
				panic(fmt.Sprintf("target shard %d out of bounds", targetShard))
			}
			mb.MessageChans[targetShard] <- msgBuffer
		}
		mb.MailFlag[myShard] = false
	}
}

func (mb *MailBox[T]) ReceiveMyMessages(myShard int) {
	for {
		select {
		case msgBuffer := <-mb.MessageChans[myShard]:
			for _, msg := range msgBuffer.Cells() {
				mb.ReceiveMsgQs[myShard].Add(msg)
			}
			msgBuffer.Reset() // Reset the originating buffer for reuse
		default:
			return
		}
	}
}

func (mb *MailBox[T]) ClearMyMessages(myShard int) {
	mb.ReceiveMsgQs[myShard].Reset()
}
