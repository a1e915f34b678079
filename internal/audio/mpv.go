package audio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	socketWait  = 2 * time.Second
	ipcTimeout  = time.Second
	stopTimeout = 2 * time.Second
)

// MPV drives an mpv subprocess over its JSON IPC socket. One process per
// Play call; Stop kills it. --keep-open holds the process at end-of-file so
// eof-reached stays pollable instead of the process vanishing.
type MPV struct {
	binary string
	socket string
	logger *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	requestID int64
}

// NewMPV creates an mpv-backed audio backend. binary is the mpv executable,
// socket the unix socket path used for IPC.
func NewMPV(binary, socket string, logger *slog.Logger) *MPV {
	if logger == nil {
		logger = slog.Default()
	}
	return &MPV{binary: binary, socket: socket, logger: logger}
}

// Play starts a fresh mpv process for path at the given offset.
func (m *MPV) Play(path string, offsetSeconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file: %w", err)
	}
	_ = os.Remove(m.socket)

	cmd := exec.Command(m.binary,
		"--no-video",
		"--no-terminal",
		"--keep-open=yes",
		fmt.Sprintf("--start=%.1f", offsetSeconds),
		"--input-ipc-server="+m.socket,
		path,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}
	m.cmd = cmd

	if err := m.waitForSocket(); err != nil {
		m.stopLocked()
		return err
	}

	m.logger.Debug("mpv started", "file", path, "offset", offsetSeconds, "pid", cmd.Process.Pid)
	return nil
}

func (m *MPV) waitForSocket() error {
	deadline := time.Now().Add(socketWait)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", m.socket, ipcTimeout)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("mpv ipc socket %s not ready after %s", m.socket, socketWait)
}

// Pause pauses playback in place.
func (m *MPV) Pause() error {
	_, err := m.command("set_property", "pause", true)
	return err
}

// Resume continues paused playback.
func (m *MPV) Resume() error {
	_, err := m.command("set_property", "pause", false)
	return err
}

// Stop kills the mpv process. Safe to call with nothing playing.
func (m *MPV) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	return nil
}

func (m *MPV) stopLocked() {
	if m.cmd == nil {
		return
	}

	proc := m.cmd.Process
	done := make(chan struct{})
	go func() {
		_ = m.cmd.Wait()
		close(done)
	}()

	_ = proc.Signal(os.Interrupt)
	select {
	case <-done:
	case <-time.After(stopTimeout):
		_ = proc.Kill()
		<-done
	}

	m.cmd = nil
	_ = os.Remove(m.socket)
}

// Position returns the current playback offset in seconds.
func (m *MPV) Position() (float64, error) {
	return m.floatProperty("time-pos")
}

// Duration returns the total file length in seconds, zero if unknown yet.
func (m *MPV) Duration() (float64, error) {
	d, err := m.floatProperty("duration")
	if err != nil {
		// mpv reports "property unavailable" until the demuxer knows
		return 0, nil
	}
	return d, nil
}

// HasEnded reports whether the loaded file played to its end. A dead mpv
// process counts as ended so a crashed decode advances the playlist instead
// of wedging the slot.
func (m *MPV) HasEnded() (bool, error) {
	m.mu.Lock()
	cmd := m.cmd
	m.mu.Unlock()
	if cmd == nil {
		return false, ErrNoPlayback
	}
	if cmd.ProcessState != nil {
		return true, nil
	}

	data, err := m.command("get_property", "eof-reached")
	if err != nil {
		return false, err
	}
	ended, ok := data.(bool)
	if !ok {
		return false, nil
	}
	return ended, nil
}

func (m *MPV) floatProperty(name string) (float64, error) {
	data, err := m.command("get_property", name)
	if err != nil {
		return 0, err
	}
	f, ok := data.(float64)
	if !ok {
		return 0, fmt.Errorf("mpv property %s: unexpected type %T", name, data)
	}
	return f, nil
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcResponse struct {
	Error     string `json:"error"`
	Data      any    `json:"data"`
	RequestID int64  `json:"request_id"`
}

// command sends one IPC command and returns the response data.
func (m *MPV) command(args ...any) (any, error) {
	m.mu.Lock()
	if m.cmd == nil {
		m.mu.Unlock()
		return nil, ErrNoPlayback
	}
	m.requestID++
	id := m.requestID
	socket := m.socket
	m.mu.Unlock()

	conn, err := net.DialTimeout("unix", socket, ipcTimeout)
	if err != nil {
		return nil, fmt.Errorf("mpv ipc dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ipcTimeout))

	req, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("mpv ipc encode: %w", err)
	}
	if _, err := conn.Write(append(req, '\n')); err != nil {
		return nil, fmt.Errorf("mpv ipc send: %w", err)
	}

	// The socket also carries unsolicited events; scan for our reply.
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var resp ipcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		if resp.RequestID != id {
			continue
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("mpv ipc: %s", resp.Error)
		}
		return resp.Data, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mpv ipc read: %w", err)
	}
	return nil, fmt.Errorf("mpv ipc: connection closed before reply")
}
