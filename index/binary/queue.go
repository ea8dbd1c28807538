package binary

// candidateQueue is a bounded max-heap over candidate distances.
// Value-based storage for cache locality; no container/heap interface
// indirection on the scan hot path.
type candidateQueue struct {
	limit int
	items []Candidate
}

func newCandidateQueue(limit int) *candidateQueue {
	return &candidateQueue{
		limit: limit,
		items: make([]Candidate, 0, limit),
	}
}

// Offer inserts a candidate, evicting the current worst when full.
func (cq *candidateQueue) Offer(c Candidate) {
	if len(cq.items) < cq.limit {
		cq.items = append(cq.items, c)
		cq.siftUp(len(cq.items) - 1)
		return
	}

	// Root is the worst retained candidate.
	if c.Distance >= cq.items[0].Distance {
		return
	}
	cq.items[0] = c
	cq.siftDown(0)
}

// Drain returns the retained candidates in heap order. The queue must not be
// used afterwards.
func (cq *candidateQueue) Drain() []Candidate {
	items := cq.items
	cq.items = nil
	return items
}

func (cq *candidateQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if cq.items[i].Distance <= cq.items[parent].Distance {
			break
		}
		cq.items[i], cq.items[parent] = cq.items[parent], cq.items[i]
		i = parent
	}
}

func (cq *candidateQueue) siftDown(i int) {
	n := len(cq.items)
	for {
		left := 2*i + 1
		right := left + 1
		largest := i

		if left < n && cq.items[left].Distance > cq.items[largest].Distance {
			largest = left
		}
		if right < n && cq.items[right].Distance > cq.items[largest].Distance {
			largest = right
		}
		if largest == i {
			return
		}
		cq.items[i], cq.items[largest] = cq.items[largest], cq.items[i]
		i = largest
	}
}
