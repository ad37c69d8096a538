package protocol

// CommandQueue holds outstanding commands in submission order and owns the
// id counter. It is not safe for concurrent use; the Connection guards it.
type CommandQueue struct {
	commands []*Command
	nextID   int
}

// NewCommandQueue creates an empty queue with the id counter at 0.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// wrapID folds an id into [0, MaxCommandID].
func wrapID(id int) int {
	return id & MaxCommandID
}

// Allocate returns the next evaluate id and advances the counter.
func (q *CommandQueue) Allocate() int {
	id := q.nextID
	q.nextID = wrapID(q.nextID + 1)
	return id
}

// NextID returns the id the next Allocate will hand out.
func (q *CommandQueue) NextID() int {
	return q.nextID
}

// Resync continues numbering after an id the server echoed back.
func (q *CommandQueue) Resync(echoed int) {
	q.nextID = wrapID(echoed + 1)
}

// Push appends a command.
func (q *CommandQueue) Push(cmd *Command) {
	q.commands = append(q.commands, cmd)
}

// Peek returns the oldest command without removing it.
func (q *CommandQueue) Peek() *Command {
	if len(q.commands) == 0 {
		return nil
	}
	return q.commands[0]
}

// Shift removes and returns the oldest command.
func (q *CommandQueue) Shift() *Command {
	if len(q.commands) == 0 {
		return nil
	}
	cmd := q.commands[0]
	q.commands[0] = nil
	q.commands = q.commands[1:]
	return cmd
}

// Take removes the first evaluate command with the given id.
func (q *CommandQueue) Take(id int) (*Command, bool) {
	for i, cmd := range q.commands {
		if cmd.Phase != PhaseEvaluate || cmd.ID != id {
			continue
		}
		q.commands = append(q.commands[:i:i], q.commands[i+1:]...)
		return cmd, true
	}
	return nil, false
}

// Len returns the number of outstanding commands.
func (q *CommandQueue) Len() int {
	return len(q.commands)
}

// Abandon drops every outstanding command without notifying it and returns
// how many were dropped.
func (q *CommandQueue) Abandon() int {
	n := len(q.commands)
	q.commands = nil
	return n
}
