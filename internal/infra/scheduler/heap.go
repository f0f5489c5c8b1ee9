package scheduler

import "telegram-channel-publisher/internal/domain/model"

type entry struct {
	job   model.ScheduledJob
	index int
}

// jobHeap implements heap.Interface ordered by RunAt, then PostID.
type jobHeap []*entry

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].job.RunAt.Equal(h[j].job.RunAt) {
		return h[i].job.PostID < h[j].job.PostID
	}
	return h[i].job.RunAt.Before(h[j].job.RunAt)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
