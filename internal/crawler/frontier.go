package crawler

// queueItem is one frontier entry. The same URL may be queued several times;
// only the first dequeue counts.
type queueItem struct {
	url    string
	parent string
	depth  int
}

// frontier is a FIFO queue of URLs awaiting a visit.
type frontier struct {
	items []queueItem
	head  int
}

func (f *frontier) push(item queueItem) {
	f.items = append(f.items, item)
}

func (f *frontier) pop() (queueItem, bool) {
	if f.head >= len(f.items) {
		return queueItem{}, false
	}
	item := f.items[f.head]
	f.items[f.head] = queueItem{}
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return item, true
}

func (f *frontier) len() int {
	return len(f.items) - f.head
}
