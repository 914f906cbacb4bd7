package app

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"usertasks/model"
)

var (
	ErrDuplicateUsername  = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountNotFound    = errors.New("account not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidTaskID      = errors.New("invalid task id")
)

// Saver receives a full snapshot after every mutation.
type Saver interface {
	Save(state model.AppState) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(state model.AppState) error

func (f SaverFunc) Save(state model.AppState) error { return f(state) }

// Service holds account and task rules over the in-memory state.
type Service struct {
	state model.AppState
	saver Saver
}

// NewService creates a service with a copy of the provided state.
// A nil saver keeps everything in memory.
func NewService(state model.AppState, saver Saver) *Service {
	state = state.Clone()
	state.Renumber()
	return &Service{state: state, saver: saver}
}

// State returns a copy of current state.
func (s *Service) State() model.AppState {
	return s.state.Clone()
}

// Register appends a new account with no tasks and persists the store.
// An existing username (exact, case-sensitive) leaves the store untouched.
func (s *Service) Register(username, password string) (model.Account, error) {
	if s.indexOf(username) >= 0 {
		return model.Account{}, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}
	acc := model.Account{Username: username, Password: password, Tasks: []model.Task{}}
	s.state = append(s.state, acc)
	return acc, s.persist()
}

// AccountRef identifies one stored account. Accounts are only ever appended,
// so a ref stays valid for the lifetime of the Service.
type AccountRef int

// Authenticate returns the first account whose username and password both match exactly.
// Task operations take the returned ref, so a file holding the same username twice
// still edits the account that logged in.
func (s *Service) Authenticate(username, password string) (AccountRef, error) {
	for i, acc := range s.state {
		if acc.Username == username && acc.Password == password {
			return AccountRef(i), nil
		}
	}
	return -1, ErrInvalidCredentials
}

// Lookup returns the first account with username.
func (s *Service) Lookup(username string) (AccountRef, error) {
	i := s.indexOf(username)
	if i < 0 {
		return -1, ErrAccountNotFound
	}
	return AccountRef(i), nil
}

// Account returns a copy of the referenced account.
func (s *Service) Account(ref AccountRef) (model.Account, error) {
	acc, err := s.account(ref)
	if err != nil {
		return model.Account{}, err
	}
	return cloneAccount(*acc), nil
}

// Tasks returns the account's tasks in insertion order.
func (s *Service) Tasks(ref AccountRef) ([]model.Task, error) {
	acc, err := s.account(ref)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, len(acc.Tasks))
	copy(out, acc.Tasks)
	return out, nil
}

// AddTask appends an open task with id = current count + 1 and persists the store.
func (s *Service) AddTask(ref AccountRef, text string) (model.Task, error) {
	acc, err := s.account(ref)
	if err != nil {
		return model.Task{}, err
	}
	task := model.Task{
		ID:        len(acc.Tasks) + 1,
		Text:      text,
		Completed: false,
	}
	acc.Tasks = append(acc.Tasks, task)
	return task, s.persist()
}

// SetCompletion sets the completed flag of one task and persists the store.
// Unknown ids leave the store untouched.
func (s *Service) SetCompletion(ref AccountRef, taskID int, completed bool) (model.Task, error) {
	acc, err := s.account(ref)
	if err != nil {
		return model.Task{}, err
	}
	for j := range acc.Tasks {
		if acc.Tasks[j].ID == taskID {
			acc.Tasks[j].Completed = completed
			return acc.Tasks[j], s.persist()
		}
	}
	return model.Task{}, fmt.Errorf("%w: %d", ErrTaskNotFound, taskID)
}

// TaskIDRangeError is a well-formed integer id too large for any task.
type TaskIDRangeError struct {
	ID string
}

func (e *TaskIDRangeError) Error() string { return "task id out of range: " + e.ID }

func (e *TaskIDRangeError) Unwrap() error { return ErrTaskNotFound }

// ParseTaskID converts typed input into a task id. Surrounding whitespace, a sign
// and single underscores between digits are accepted; anything else is ErrInvalidTaskID.
// Integers beyond int range return a *TaskIDRangeError, which matches ErrTaskNotFound.
func ParseTaskID(raw string) (int, error) {
	digits, ok := normalizeInteger(strings.TrimSpace(raw))
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTaskID, raw)
	}
	id, err := strconv.Atoi(digits)
	if err != nil {
		n, _ := new(big.Int).SetString(digits, 10)
		return 0, &TaskIDRangeError{ID: n.String()}
	}
	return id, nil
}

// normalizeInteger strips a leading '+' and digit-group underscores.
func normalizeInteger(s string) (string, bool) {
	var b strings.Builder
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			b.WriteByte('-')
		}
		s = s[1:]
	}
	prevDigit := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
			prevDigit = true
		case c == '_' && prevDigit && i+1 < len(s):
			prevDigit = false
		default:
			return "", false
		}
	}
	return b.String(), prevDigit
}
func (s *Service) account(ref AccountRef) (*model.Account, error) {
	if ref < 0 || int(ref) >= len(s.state) {
		return nil, ErrAccountNotFound
	}
	return &s.state[ref], nil
}

func (s *Service) indexOf(username string) int {
	for i := range s.state {
		if s.state[i].Username == username {
			return i
		}
	}
	return -1
}

func (s *Service) persist() error {
	if s.saver == nil {
		return nil
	}
	if err := s.saver.Save(s.state.Clone()); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func cloneAccount(acc model.Account) model.Account {
	tasks := make([]model.Task, len(acc.Tasks))
	copy(tasks, acc.Tasks)
	acc.Tasks = tasks
	return acc
}
