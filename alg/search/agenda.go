package search

import (
	"container/heap"
)

type Scored interface {
	Score() float64
}

type agendaItem[T Scored] struct {
	value T
	seq   int
}

type agendaHeap[T Scored] []agendaItem[T]

func (h agendaHeap[T]) Len() int { return len(h) }

// highest score first, earlier pushes first among equals
func (h agendaHeap[T]) Less(i, j int) bool {
	si, sj := h[i].value.Score(), h[j].value.Score()
	if si != sj {
		return si > sj
	}
	return h[i].seq < h[j].seq
}

func (h agendaHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *agendaHeap[T]) Push(x any) { *h = append(*h, x.(agendaItem[T])) }

func (h *agendaHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Agenda is a max-priority queue. Items with equal scores pop in the order
// they were pushed, so a search driven by it is reproducible.
type Agenda[T Scored] struct {
	items  agendaHeap[T]
	pushed int
}

func NewAgenda[T Scored](size int) *Agenda[T] {
	return &Agenda[T]{items: make(agendaHeap[T], 0, size)}
}

func (a *Agenda[T]) Push(value T) {
	heap.Push(&a.items, agendaItem[T]{value: value, seq: a.pushed})
	a.pushed++
}

// Pop removes the best item; ok is false when the agenda is empty
func (a *Agenda[T]) Pop() (value T, ok bool) {
	if len(a.items) == 0 {
		return value, false
	}
	return heap.Pop(&a.items).(agendaItem[T]).value, true
}

func (a *Agenda[T]) Peek() (value T, ok bool) {
	if len(a.items) == 0 {
		return value, false
	}
	return a.items[0].value, true
}

func (a *Agenda[T]) Len() int {
	return len(a.items)
}

// Clear drops the queued items and restarts the insertion order
func (a *Agenda[T]) Clear() {
	a.items = a.items[:0]
	a.pushed = 0
}
