package engine

import (
	"container/heap"
	"time"
)

// tick 待触发的传感器节拍
type tick struct {
	at     time.Duration
	sensor int
}

// tickQueue 最小堆：按时间，其次按传感器定义顺序
type tickQueue []tick

func (q tickQueue) Len() int { return len(q) }

func (q tickQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].sensor < q[j].sensor
}

func (q tickQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *tickQueue) Push(x any) { *q = append(*q, x.(tick)) }

func (q *tickQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func (q *tickQueue) push(t tick) { heap.Push(q, t) }

func (q *tickQueue) pop() tick { return heap.Pop(q).(tick) }

func (q tickQueue) peek() (tick, bool) {
	if len(q) == 0 {
		return tick{}, false
	}
	return q[0], true
}
