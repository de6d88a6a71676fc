package kernel

// queueID names the queue a descriptor currently belongs to. A descriptor
// is in at most one queue at any time; queueNone means it is the running
// task (or the scheduler).
type queueID uint8

const (
	queueNone queueID = iota
	queueReady
	queueWaiting
	queueTimed
	queueFree
)

func (q queueID) String() string {
	switch q {
	case queueNone:
		return "none"
	case queueReady:
		return "ready"
	case queueWaiting:
		return "waiting"
	case queueTimed:
		return "timed"
	case queueFree:
		return "free"
	default:
		return "unknown"
	}
}

// queueCap is one less than the table size: the scheduler is never queued.
const queueCap = MaxTasks - 1

// taskQueue is a fixed-capacity FIFO ring over task table indexes.
// head counts enqueues, tail counts dequeues; both wrap.
type taskQueue struct {
	id    queueID
	head  uint8
	tail  uint8
	slots [MaxTasks]TaskID
}

func (q *taskQueue) len() int { return int(q.head - q.tail) }

// enqueue appends a descriptor and stamps its membership back-pointer.
// It fails when the queue is at capacity.
func (k *Kernel) enqueue(q *taskQueue, id TaskID) bool {
	if q.head-q.tail >= queueCap {
		return false
	}
	q.slots[q.head%MaxTasks] = id
	q.head++
	k.tasks[id].queue = q.id
	return true
}

// dequeue pops the head descriptor and clears its back-pointer.
func (k *Kernel) dequeue(q *taskQueue) (TaskID, bool) {
	if q.tail == q.head {
		return TaskNone, false
	}
	id := q.slots[q.tail%MaxTasks]
	q.tail++
	k.tasks[id].queue = queueNone
	return id, true
}

// remove pulls one specific descriptor out of a queue. Queues are not
// indexable by identity, so this rotates the ring once; n is small and
// bounded by the table size.
func (k *Kernel) remove(q *taskQueue, id TaskID) bool {
	n := q.len()
	found := false
	for i := 0; i < n; i++ {
		got, _ := k.dequeue(q)
		if got == id && !found {
			found = true
			continue
		}
		k.enqueue(q, got)
	}
	return found
}

// unqueue removes a descriptor from whichever queue currently holds it.
func (k *Kernel) unqueue(id TaskID) bool {
	switch k.tasks[id].queue {
	case queueReady:
		return k.remove(&k.ready, id)
	case queueWaiting:
		return k.remove(&k.waiting, id)
	case queueTimed:
		return k.remove(&k.timed, id)
	case queueFree:
		return k.remove(&k.free, id)
	default:
		return false
	}
}
