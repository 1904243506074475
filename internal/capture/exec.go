package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/meetscribe/api/internal/roster"
)

// ExecEngine runs the capture bot as a child process. The bot receives its
// assignment through environment variables, writes the recording to the
// requested output path, and keeps a roster snapshot file fresh beside it.
// Exit code zero means the capture finished cleanly.
type ExecEngine struct {
	// Command is the bot binary plus fixed arguments.
	Command []string
	// StopGrace is how long a stopped bot gets to finalize the container
	// before it is killed.
	StopGrace time.Duration
}

func NewExecEngine(command []string) *ExecEngine {
	return &ExecEngine{Command: command, StopGrace: 20 * time.Second}
}

func (e *ExecEngine) Start(ctx context.Context, req Request) (Meeting, error) {
	if len(e.Command) == 0 {
		return nil, fmt.Errorf("no capture command configured")
	}

	logFile, err := os.Create(req.LogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture log: %w", err)
	}

	rosterPath := filepath.Join(filepath.Dir(req.OutputPath), "roster.json")

	// The process gets a background-derived context on purpose: stopping is
	// the meeting's job, not an implicit side effect of the worker ctx.
	cmd := exec.Command(e.Command[0], e.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"CAPTURE_SESSION_ID="+req.SessionID,
		"CAPTURE_TARGET_URL="+req.TargetURL,
		"CAPTURE_PLATFORM="+string(req.Platform),
		"CAPTURE_CREDENTIALS_REF="+req.CredentialsRef,
		"CAPTURE_OUTPUT_PATH="+req.OutputPath,
		"CAPTURE_ROSTER_PATH="+rosterPath,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to start capture bot: %w", err)
	}

	m := &execMeeting{
		cmd:        cmd,
		req:        req,
		rosterPath: rosterPath,
		logFile:    logFile,
		stopGrace:  e.StopGrace,
		done:       make(chan error, 1),
	}
	go func() {
		m.done <- cmd.Wait()
	}()
	return m, nil
}

type execMeeting struct {
	cmd        *exec.Cmd
	req        Request
	rosterPath string
	logFile    *os.File
	stopGrace  time.Duration

	once sync.Once
	done chan error
}

// Roster reads the snapshot file the bot keeps current. A file that does
// not exist yet reads as an empty meeting.
func (m *execMeeting) Roster(ctx context.Context) ([]roster.Entry, error) {
	data, err := os.ReadFile(m.rosterPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read roster snapshot: %w", err)
	}

	var entries []roster.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse roster snapshot: %w", err)
	}
	return entries, nil
}

func (m *execMeeting) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case err := <-m.done:
		m.logFile.Close()
		res := Result{
			Success:    err == nil,
			OutputPath: m.req.OutputPath,
			LogPath:    m.req.LogPath,
		}
		if err != nil {
			res.Error = err.Error()
		}
		return res, nil
	}
}

// Stop interrupts the bot so it can leave the meeting and finalize the
// recording, escalating to a kill after the grace period.
func (m *execMeeting) Stop(ctx context.Context) error {
	var stopErr error
	m.once.Do(func() {
		if err := m.cmd.Process.Signal(syscall.SIGINT); err != nil {
			stopErr = m.cmd.Process.Kill()
			return
		}

		grace := time.NewTimer(m.stopGrace)
		defer grace.Stop()
		select {
		case <-m.done:
		case <-grace.C:
			stopErr = m.cmd.Process.Kill()
		case <-ctx.Done():
			stopErr = m.cmd.Process.Kill()
		}
	})
	return stopErr
}
