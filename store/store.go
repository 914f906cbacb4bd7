package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"usertasks/model"
)

const maxRotatingBackups = 10

var errNoValidBackup = errors.New("no valid backup found")

// Exists reports whether a data file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads app state from a JSON file.
// If file does not exist, it returns an initialized empty state.
// Task ids are renumbered 1..N per account; ids on disk are ignored.
func Load(path string) (model.AppState, error) {
	data, err := readLocked(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.NewState(), nil
		}
		return nil, err
	}
	return decodeState(data)
}

// LoadWithRecovery loads state and tries automatic recovery when the main JSON is corrupted.
// It returns an optional status message to be shown to the user.
func LoadWithRecovery(path string) (model.AppState, string, error) {
	state, err := Load(path)
	if err == nil {
		return state, "", nil
	}
	if !isCorruptStateError(err) {
		return nil, "", err
	}

	corruptPath, moveErr := moveCorruptFile(path)
	if moveErr != nil {
		return nil, "", fmt.Errorf("move corrupt file: %w", moveErr)
	}

	recoveredState, backupPath, backupErr := loadLatestValidBackup(path)
	if backupErr == nil {
		if err := Replace(path, recoveredState); err != nil {
			return nil, "", fmt.Errorf("restore backup: %w", err)
		}
		msg := fmt.Sprintf("Corrupt data file recovered from %s", filepath.Base(backupPath))
		if corruptPath != "" {
			msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
		}
		return recoveredState, msg, nil
	}
	if !errors.Is(backupErr, errNoValidBackup) {
		return nil, "", fmt.Errorf("inspect backups: %w", backupErr)
	}

	empty := model.NewState()
	if err := Replace(path, empty); err != nil {
		return nil, "", fmt.Errorf("reset data file after corruption: %w", err)
	}
	msg := "Corrupt data file with no valid backup; starting with no accounts"
	if corruptPath != "" {
		msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
	}
	return empty, msg, nil
}

// Save writes app state to path as JSON, overwriting the file in place.
func Save(path string, state model.AppState) error {
	return withLock(path, func() error {
		return writeJSON(path, state)
	})
}

// Replace writes state to a temporary file and renames it over path.
func Replace(path string, state model.AppState) error {
	return withLock(path, func() error {
		return replaceJSON(path, state)
	})
}

// Autosave writes safely using temporary file + atomic rename.
// It also stores a latest backup (.bak) and a rotating timestamped backup set.
func Autosave(path string, state model.AppState) error {
	return withLock(path, func() error {
		if err := backup(path); err != nil {
			return err
		}
		return replaceJSON(path, state)
	})
}

// Writer persists full snapshots to one data file.
type Writer struct {
	Path    string
	Backups bool
}

// Save implements the snapshot sink used after every mutation.
func (w Writer) Save(state model.AppState) error {
	if w.Backups {
		return Autosave(w.Path, state)
	}
	return Replace(w.Path, state)
}

func decodeState(data []byte) (model.AppState, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var state model.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = model.NewState()
	}
	state.Renumber()
	return state, nil
}

// encodeState writes text verbatim: no HTML escaping of &, < or >.
func encodeState(state model.AppState) ([]byte, error) {
	if state == nil {
		state = model.NewState()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(path string, state model.AppState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func replaceJSON(path string, state model.AppState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func lockPath(path string) string {
	return path + ".lock"
}

// withLock runs fn while holding an exclusive advisory lock next to path.
func withLock(path string, fn func() error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

func readLocked(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	lock := flock.New(lockPath(path))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return os.ReadFile(path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func backup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102-150405.000000000")
	rotatingPath := fmt.Sprintf("%s.bak.%s", path, timestamp)
	if err := os.WriteFile(rotatingPath, data, 0o644); err != nil {
		return err
	}

	return pruneRotatingBackups(path)
}

func pruneRotatingBackups(path string) error {
	files, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		return err
	}
	if len(files) <= maxRotatingBackups {
		return nil
	}

	sort.Strings(files)
	toDelete := files[:len(files)-maxRotatingBackups]
	for _, old := range toDelete {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func loadLatestValidBackup(path string) (model.AppState, string, error) {
	candidates := make([]string, 0, maxRotatingBackups+1)
	latest := path + ".bak"
	if _, err := os.Stat(latest); err == nil {
		candidates = append(candidates, latest)
	}
	rotating, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		return nil, "", err
	}
	candidates = append(candidates, rotating...)
	if len(candidates) == 0 {
		return nil, "", errNoValidBackup
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		iInfo, iErr := os.Stat(candidates[i])
		jInfo, jErr := os.Stat(candidates[j])
		if iErr != nil || jErr != nil {
			return candidates[i] > candidates[j]
		}
		return iInfo.ModTime().After(jInfo.ModTime())
	})

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		state, err := decodeState(data)
		if err != nil {
			continue
		}
		return state, candidate, nil
	}

	return nil, "", errNoValidBackup
}

func moveCorruptFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	timestamp := time.Now().UTC().Format("20060102-150405")
	corruptName := fmt.Sprintf("%s.corrupt-%s%s", name, timestamp, ext)
	corruptPath := filepath.Join(filepath.Dir(path), corruptName)
	if err := os.Rename(path, corruptPath); err != nil {
		return "", err
	}
	return corruptPath, nil
}

func isCorruptStateError(err error) bool {
	if errors.Is(err, ErrInvalidState) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// Open loads the data file at startup. When the file does not exist and seed
// is set, the demo accounts are written first and returned.
// A file that exists but cannot be read yields an empty state and a status line;
// it is left in place.
func Open(path string, seed bool) (model.AppState, string, error) {
	if !Exists(path) && seed {
		state := model.SeedState()
		if err := Replace(path, state); err != nil {
			return nil, "", fmt.Errorf("seed %s: %w", path, err)
		}
		return state, "", nil
	}
	state, status, err := LoadWithRecovery(path)
	if err != nil {
		return model.NewState(), fmt.Sprintf("Data file could not be read (%v); starting with no accounts", err), nil
	}
	return state, status, nil
}
