package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"usertasks/model"
	"usertasks/store"
)

type result struct {
	out    string
	errOut string
	err    error
}

// execute runs the command with an empty explicit config so no user or project file is read.
func execute(t *testing.T, input string, args ...string) result {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, nil, 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	for _, k := range []string{
		"USERTASKS_DATA_FILE", "USERTASKS_LOG_LEVEL", "USERTASKS_LOG_FORMAT",
		"USERTASKS_UI", "USERTASKS_BACKUPS", "USERTASKS_SEED",
	} {
		t.Setenv(k, "")
	}

	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(input), &out, &errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func TestFirstRunSeedsDemoAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	res := execute(t, "2\ntestuser1\ntestpassword1\n2\n5\n3\n", "--data", path)
	if res.err != nil {
		t.Fatalf("execute failed: %v\n%s", res.err, res.errOut)
	}

	for _, want := range []string{
		"User 'testuser1' is authenticated.",
		"Tasks:\n1. Test task 1 for User 1 - Not Completed\n2. Test task 2 for User 1 - Completed\n",
		"Exiting...",
	} {
		if !strings.Contains(res.out, want) {
			t.Fatalf("expected output to contain %q\n%s", want, res.out)
		}
	}

	state, err := store.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(state) != 3 {
		t.Fatalf("expected 3 seeded accounts, got %d", len(state))
	}
	for i, acc := range state {
		if len(acc.Tasks) != 2 || acc.Tasks[0].Completed || !acc.Tasks[1].Completed {
			t.Fatalf("unexpected seeded tasks for account %d: %+v", i, acc.Tasks)
		}
	}
}

func TestNoSeedStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	res := execute(t, "2\ntestuser1\ntestpassword1\n3\n", "--data", path, "--no-seed")
	if res.err != nil {
		t.Fatalf("execute failed: %v", res.err)
	}
	if !strings.Contains(res.out, "Invalid username or password.") {
		t.Fatalf("expected failed login on empty store\n%s", res.out)
	}
	if store.Exists(path) {
		t.Fatalf("expected no data file without a mutation")
	}
}

func TestRegistrationPersistsWithoutBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	res := execute(t, "1\nalice\npw1\n3\n", "--data", path, "--no-seed", "--no-backups")
	if res.err != nil {
		t.Fatalf("execute failed: %v", res.err)
	}

	state, err := store.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(state) != 1 || state[0].Username != "alice" || state[0].Password != "pw1" {
		t.Fatalf("unexpected state %+v", state)
	}
	if store.Exists(path + ".bak") {
		t.Fatalf("expected no backup with --no-backups")
	}
}

func TestCorruptFileStatusIsPrinted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	res := execute(t, "3\n", "--data", path)
	if res.err != nil {
		t.Fatalf("execute failed: %v", res.err)
	}
	if !strings.Contains(res.out, "Corrupt data file") {
		t.Fatalf("expected recovery status in output\n%s", res.out)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "users.corrupt-*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected the bad file to be moved aside, got %v", matches)
	}
}

func TestRejectsUnknownUI(t *testing.T) {
	res := execute(t, "", "--data", filepath.Join(t.TempDir(), "users.json"), "--ui", "web")
	if res.err == nil {
		t.Fatalf("expected an error for an unknown front-end")
	}
}

func TestRejectsPositionalArgs(t *testing.T) {
	res := execute(t, "", "extra")
	if res.err == nil {
		t.Fatalf("expected an error for positional arguments")
	}
}

func TestCheckValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := store.Save(path, model.SeedState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	res := execute(t, "", "check", "--data", path)
	if res.err != nil {
		t.Fatalf("check failed: %v\n%s", res.err, res.out)
	}
	if !strings.Contains(res.out, "valid, 3 accounts") {
		t.Fatalf("unexpected summary\n%s", res.out)
	}
	if !strings.Contains(res.out, "  testuser2: 2 tasks, 1 completed\n") {
		t.Fatalf("expected per-account line\n%s", res.out)
	}
	if strings.Contains(res.out, "testpassword") {
		t.Fatalf("check must not print passwords\n%s", res.out)
	}
}

func TestCheckInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`[{"username": 7}]`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	res := execute(t, "", "check", "--data", path)
	if !errors.Is(res.err, ErrCheckFailed) {
		t.Fatalf("expected ErrCheckFailed, got %v", res.err)
	}
	if !strings.Contains(res.out, "[0].username") {
		t.Fatalf("expected the violation location\n%s", res.out)
	}

	res = execute(t, "", "check", "--data", filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(res.err, ErrCheckFailed) {
		t.Fatalf("expected ErrCheckFailed for a missing file, got %v", res.err)
	}
}

func TestUnreadableDataFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	res := execute(t, "2\ntestuser1\ntestpassword1\n3\n", "--data", path)
	if res.err != nil {
		t.Fatalf("execute failed: %v", res.err)
	}
	for _, want := range []string{"could not be read", "Invalid username or password.", "Exiting..."} {
		if !strings.Contains(res.out, want) {
			t.Fatalf("expected output to contain %q\n%s", want, res.out)
		}
	}
}

func TestCheckHelpMentionsLockFile(t *testing.T) {
	cmd := NewRootCommand(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	check, _, err := cmd.Find([]string{"check"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !strings.Contains(check.Long, ".lock") {
		t.Fatalf("expected the help text to mention the lock file, got %q", check.Long)
	}
}
