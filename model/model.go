package model

import "fmt"

const (
	StatusCompleted    = "Completed"
	StatusNotCompleted = "Not Completed"
)

// Task is an individual todo item owned by one account.
// ID is its 1-based position in the owner's list.
type Task struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Status returns the label shown next to the task text.
func (t Task) Status() string {
	if t.Completed {
		return StatusCompleted
	}
	return StatusNotCompleted
}

// Line renders the task the way task listings show it.
func (t Task) Line() string {
	return fmt.Sprintf("%d. %s - %s", t.ID, t.Text, t.Status())
}

// Account is a registered username/password pair and its tasks.
// The password is stored and compared as plain text.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Tasks    []Task `json:"tasks"`
}

// AppState is the full persisted state. It is encoded as a bare JSON array.
type AppState []Account

// NewState returns an initialized empty state.
func NewState() AppState {
	return AppState{}
}

// SeedState returns the demo accounts written on first run.
func SeedState() AppState {
	state := NewState()
	for i := 1; i <= 3; i++ {
		state = append(state, Account{
			Username: fmt.Sprintf("testuser%d", i),
			Password: fmt.Sprintf("testpassword%d", i),
			Tasks: []Task{
				{ID: 1, Text: fmt.Sprintf("Test task 1 for User %d", i)},
				{ID: 2, Text: fmt.Sprintf("Test task 2 for User %d", i), Completed: true},
			},
		})
	}
	return state
}

// Renumber rewrites task ids of every account as a dense 1..N sequence
// and replaces nil task slices with empty ones.
func (s AppState) Renumber() {
	for i := range s {
		if s[i].Tasks == nil {
			s[i].Tasks = []Task{}
		}
		for j := range s[i].Tasks {
			s[i].Tasks[j].ID = j + 1
		}
	}
}

// Clone returns a deep copy of the state.
func (s AppState) Clone() AppState {
	out := make(AppState, len(s))
	for i, a := range s {
		tasks := make([]Task, len(a.Tasks))
		copy(tasks, a.Tasks)
		a.Tasks = tasks
		out[i] = a
	}
	return out
}
