// Package session runs the numbered-menu loop over a line-oriented terminal.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"usertasks/app"
	"usertasks/logging"
	"usertasks/model"
)

// Menu choices, prompts and messages shown to the user.
const (
	MainMenu = "\n1. Register new user\n2. Authenticate user\n3. Exit"
	UserMenu = "\n1. Add task\n2. View tasks\n3. Mark task as completed\n4. Mark task as not completed\n5. Logout"

	PromptMainChoice = "Enter your choice (1, 2, or 3): "
	PromptUserChoice = "Enter your choice (1-5): "
	PromptUsername   = "Enter your username: "
	PromptPassword   = "Enter your password: "
	PromptTaskText   = "Enter the task text: "
	PromptTaskID     = "Enter the ID of the task you want to mark: "

	MsgExiting         = "Exiting..."
	MsgLoggingOut      = "Logging out..."
	MsgInvalidMain     = "Invalid choice. Please enter 1, 2, or 3."
	MsgInvalidUser     = "Invalid choice. Please enter a number from 1 to 5."
	MsgBadCredentials  = "Invalid username or password."
	MsgNoTasks         = "No tasks found."
	MsgTasksHeader     = "Tasks:"
	MsgInvalidTaskID   = "Invalid task ID. Please enter a number."
	MsgRegistered      = "User '%s' has been registered."
	MsgAlreadyExists   = "User '%s' is already registered."
	MsgAuthenticated   = "User '%s' is authenticated."
	MsgTaskAdded       = "Task added: %s"
	MsgTaskMarked      = "Task %d marked as %s."
	MsgTaskNotFound    = "Task with ID %v not found."
	MsgSaveFailed      = "Change applied, but saving to disk failed: %v"
	MsgUnexpectedError = "Error: %v"
)

// errInputClosed ends every menu level once stdin is exhausted.
var errInputClosed = errors.New("input closed")

type styles struct {
	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:   r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
		failure: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		muted:   r.NewStyle().Faint(true),
	}
}

// Session drives the two menu levels against one Service.
type Session struct {
	svc    *app.Service
	in     *bufio.Reader
	out    io.Writer
	log    *log.Logger
	styles styles
}

// New builds a session reading commands from in and writing the transcript to out.
// A nil logger discards diagnostics.
func New(svc *app.Service, in io.Reader, out io.Writer, logger *log.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		svc:    svc,
		in:     bufio.NewReader(in),
		out:    out,
		log:    logger,
		styles: newStyles(out),
	}
}

// Run shows the top-level menu until the user exits or input ends.
func (s *Session) Run() error {
	for {
		s.println(MainMenu)
		choice, err := s.prompt(PromptMainChoice)
		if err != nil {
			return s.finish(err)
		}

		switch choice {
		case "1":
			err = s.register()
		case "2":
			err = s.authenticate()
		case "3":
			s.println(MsgExiting)
			return nil
		default:
			s.fail(MsgInvalidMain)
		}
		if err != nil {
			return s.finish(err)
		}
	}
}

func (s *Session) finish(err error) error {
	if errors.Is(err, errInputClosed) {
		s.log.Debug("input closed, exiting")
		s.println(MsgExiting)
		return nil
	}
	return err
}

func (s *Session) register() error {
	username, password, err := s.credentials()
	if err != nil {
		return err
	}

	_, err = s.svc.Register(username, password)
	switch {
	case errors.Is(err, app.ErrDuplicateUsername):
		s.log.Info("duplicate registration", "user", username)
		s.fail(fmt.Sprintf(MsgAlreadyExists, username))
	case err != nil:
		s.saveFailed(s.log, err)
	default:
		s.log.Info("registered", "user", username)
		s.ok(fmt.Sprintf(MsgRegistered, username))
	}
	return nil
}

func (s *Session) authenticate() error {
	username, password, err := s.credentials()
	if err != nil {
		return err
	}

	ref, err := s.svc.Authenticate(username, password)
	if err != nil {
		s.log.Info("authentication failed", "user", username)
		s.fail(MsgBadCredentials)
		return nil
	}
	s.ok(fmt.Sprintf(MsgAuthenticated, username))
	return s.accountLoop(ref, username)
}

func (s *Session) credentials() (string, string, error) {
	username, err := s.prompt(PromptUsername)
	if err != nil {
		return "", "", err
	}
	password, err := s.prompt(PromptPassword)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// accountLoop runs the per-account menu until logout.
func (s *Session) accountLoop(ref app.AccountRef, username string) error {
	logger := logging.ForSession(s.log, username)
	logger.Info("session started")

	for {
		s.println(UserMenu)
		choice, err := s.prompt(PromptUserChoice)
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = s.addTask(logger, ref)
		case "2":
			s.viewTasks(ref)
		case "3":
			err = s.markTask(logger, ref, true)
		case "4":
			err = s.markTask(logger, ref, false)
		case "5":
			s.println(MsgLoggingOut)
			logger.Info("session ended")
			return nil
		default:
			s.fail(MsgInvalidUser)
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) addTask(logger *log.Logger, ref app.AccountRef) error {
	text, err := s.prompt(PromptTaskText)
	if err != nil {
		return err
	}
	task, err := s.svc.AddTask(ref, text)
	if err != nil {
		s.saveFailed(logger, err)
		return nil
	}
	logger.Debug("task added", "id", task.ID)
	s.ok(fmt.Sprintf(MsgTaskAdded, text))
	return nil
}

func (s *Session) viewTasks(ref app.AccountRef) {
	tasks, err := s.svc.Tasks(ref)
	if err != nil {
		s.fail(fmt.Sprintf(MsgUnexpectedError, err))
		return
	}
	if len(tasks) == 0 {
		s.println(s.styles.muted.Render(MsgNoTasks))
		return
	}
	s.println(s.styles.title.Render(MsgTasksHeader))
	for _, task := range tasks {
		s.println(task.Line())
	}
}

func (s *Session) markTask(logger *log.Logger, ref app.AccountRef, completed bool) error {
	s.viewTasks(ref)
	raw, err := s.prompt(PromptTaskID)
	if err != nil {
		return err
	}

	id, err := app.ParseTaskID(raw)
	var rangeErr *app.TaskIDRangeError
	switch {
	case errors.As(err, &rangeErr):
		s.fail(fmt.Sprintf(MsgTaskNotFound, rangeErr.ID))
		return nil
	case err != nil:
		s.fail(MsgInvalidTaskID)
		return nil
	}

	task, err := s.svc.SetCompletion(ref, id, completed)
	switch {
	case errors.Is(err, app.ErrTaskNotFound):
		s.fail(fmt.Sprintf(MsgTaskNotFound, id))
	case err != nil:
		s.saveFailed(logger, err)
	default:
		logger.Debug("task marked", "id", task.ID, "completed", task.Completed)
		s.ok(fmt.Sprintf(MsgTaskMarked, task.ID, task.Status()))
	}
	return nil
}

// prompt writes label and reads one line without its line terminator.
// A final line without a newline is still returned; errInputClosed follows.
func (s *Session) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				fmt.Fprintln(s.out)
				return "", errInputClosed
			}
		} else {
			return "", fmt.Errorf("read input: %w", err)
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Session) saveFailed(logger *log.Logger, err error) {
	logger.Error("persist failed", "err", err)
	s.fail(fmt.Sprintf(MsgSaveFailed, err))
}

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}

func (s *Session) ok(msg string) {
	s.println(s.styles.success.Render(msg))
}

func (s *Session) fail(msg string) {
	s.println(s.styles.failure.Render(msg))
}

// RenderTasks returns the listing for tasks exactly as the session prints it.
func RenderTasks(tasks []model.Task) string {
	if len(tasks) == 0 {
		return MsgNoTasks
	}
	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, MsgTasksHeader)
	for _, task := range tasks {
		lines = append(lines, task.Line())
	}
	return strings.Join(lines, "\n")
}
