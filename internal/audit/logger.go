package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ActionLogin       = "auth.login"
	ActionLoginFailed = "auth.login_failed"
	ActionLogout      = "auth.logout"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Event struct {
	ID        string `json:"id"`
	At        string `json:"at"`
	SteamID   string `json:"steam_id,omitempty"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	RequestID string `json:"request_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Logger appends identity events to a JSON-lines file. A nil Logger or an
// empty path drops events.
type Logger struct {
	path    string
	mu      sync.Mutex
	nowFunc func() time.Time
}

func NewLogger(path string) *Logger {
	return &Logger{path: path, nowFunc: time.Now}
}

func (l *Logger) Log(e Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At == "" {
		e.At = l.nowFunc().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write audit log entry: %w", err)
	}
	return nil
}
