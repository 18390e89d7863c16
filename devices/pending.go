package devices

// PendingQueue holds the byte cost of every command sent to the controller
// that has not been answered yet, oldest first. Responses arrive in send
// order, so each ok or error pops the head.
type PendingQueue struct {
	costs []int
	head  int
	sum   int
}

func (q *PendingQueue) Push(cost int) {
	q.costs = append(q.costs, cost)
	q.sum += cost
}

// Pop removes the oldest entry. It returns false on an empty queue, which
// means the controller answered something we never sent.
func (q *PendingQueue) Pop() (int, bool) {
	if q.head == len(q.costs) {
		return 0, false
	}
	cost := q.costs[q.head]
	q.head++
	q.sum -= cost
	if q.head == len(q.costs) {
		q.costs = q.costs[:0]
		q.head = 0
	}
	return cost, true
}

func (q *PendingQueue) Sum() int {
	return q.sum
}

func (q *PendingQueue) Len() int {
	return len(q.costs) - q.head
}

// CommandCost is the number of bytes a command occupies in the receive
// buffer: its text plus the line terminator.
func CommandCost(command string) int {
	return len(command) + 1
}
