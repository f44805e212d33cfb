package worker

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kanweiwei/speekium/internal/domain"
)

var (
	// ErrHandshakeTimeout means the worker did not signal readiness within
	// the handshake budget.
	ErrHandshakeTimeout = errors.New("worker initialization timeout")
	// ErrHandshakeEarlyExit means the worker process exited before becoming
	// ready.
	ErrHandshakeEarlyExit = errors.New("worker exited during initialization")
	// ErrConnectionLost means a pipe closed mid-session.
	ErrConnectionLost = errors.New("worker connection lost")
	// ErrProtocol means a response line was not valid JSON.
	ErrProtocol = errors.New("worker protocol error")
)

// cancelledResponse is returned when a blocking request is aborted locally.
// The abort outcome wins over whatever the worker eventually answers.
var cancelledResponse = json.RawMessage(`{"success":false,"error":"Recording cancelled"}`)

// request is one framed line on the worker's stdin.
type request struct {
	Command string `json:"command"`
	Args    any    `json:"args"`
}

// client wraps the worker process pipes. It is not safe for concurrent use;
// the Supervisor serializes access.
type client struct {
	cmd    *exec.Cmd
	stdin  *bufio.Writer
	stdout *bufio.Reader
	stderr io.Reader
}

// newClient builds a client over arbitrary pipes; tests use it to exercise
// the framing without a process.
func newClient(w io.Writer, r io.Reader) *client {
	return &client{
		stdin:  bufio.NewWriter(w),
		stdout: bufio.NewReader(r),
	}
}

// startProcess launches the detected worker with redirected pipes. The
// inherited PATH is augmented with extraPaths (and the bundle's _internal
// directory in production mode) so the worker can find auxiliary tools.
func startProcess(mode Mode, extraPaths []string) (*client, error) {
	pathDirs := append([]string{}, extraPaths...)
	if mode.Kind == Production {
		// Bundled dependencies live next to the sidecar executable.
		internal := filepath.Join(filepath.Dir(mode.Path), "_internal")
		pathDirs = append([]string{internal}, pathDirs...)
	}
	pathDirs = append(pathDirs, os.Getenv("PATH"))
	pathEnv := "PATH=" + strings.Join(pathDirs, string(os.PathListSeparator))

	var cmd *exec.Cmd
	switch mode.Kind {
	case Production:
		cmd = exec.Command(mode.Path, "daemon")
	default:
		cmd = exec.Command(interpreterFor(mode.Path), mode.Path, "daemon")
	}
	cmd.Env = append(os.Environ(), pathEnv)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning worker (%s): %w", mode, err)
	}

	return &client{
		cmd:    cmd,
		stdin:  bufio.NewWriter(stdin),
		stdout: bufio.NewReader(stdout),
		stderr: stderr,
	}, nil
}

// awaitReady reads stdout lines until the worker's ready event. Anything
// that is not a framed event is ignored as log noise. A zero timeout waits
// indefinitely, for first runs where model assets may still be downloading.
func (c *client) awaitReady(timeout time.Duration, progress func(domain.WorkerProgress)) error {
	start := time.Now()

	for {
		if timeout > 0 && time.Since(start) > timeout {
			return ErrHandshakeTimeout
		}

		line, err := c.stdout.ReadBytes('\n')
		if err != nil {
			diag := c.drainStderr()
			if diag != "" {
				return fmt.Errorf("%w: %s", ErrHandshakeEarlyExit, diag)
			}
			return ErrHandshakeEarlyExit
		}

		var event struct {
			Event   string `json:"event"`
			Message string `json:"message"`
		}
		if json.Unmarshal(line, &event) != nil || event.Event == "" {
			continue
		}

		if progress != nil {
			progress(domain.WorkerProgress{Status: "loading", Message: progressMessage(event.Event, event.Message)})
		}

		if event.Event == "daemon_success" && isReadyMessage(event.Message) {
			return nil
		}
	}
}

// isReadyMessage matches the literal ready signal, which may be localized.
func isReadyMessage(msg string) bool {
	return strings.Contains(msg, "ready") || strings.Contains(msg, "就绪")
}

func progressMessage(event, message string) string {
	switch event {
	case "daemon_initializing":
		return "Initializing voice service..."
	case "loading_voice_assistant":
		return "Loading voice assistant..."
	case "loading_asr", "asr_loaded":
		return "Loading speech recognition model..."
	case "loading_llm", "llm_loaded":
		return "Loading language model..."
	case "loading_tts", "tts_loaded":
		return "Loading speech synthesis model..."
	case "resource_limits_failed":
		return "Resource limit setup failed, continuing..."
	case "daemon_success":
		if isReadyMessage(message) {
			return "Voice service ready"
		}
		return message
	default:
		if message != "" {
			return message
		}
		return "Loading..."
	}
}

func (c *client) drainStderr() string {
	if c.stderr == nil {
		return ""
	}
	data, _ := io.ReadAll(c.stderr)
	return strings.TrimSpace(string(data))
}

// send writes one framed request and blocks until the matching response
// line, skipping interleaved log events. cancel is polled between lines;
// when it fires, a cancelled result is returned and whatever the worker
// answers later is left for the next reader to skip.
func (c *client) send(command string, args any, cancel func() bool) (json.RawMessage, error) {
	if err := c.write(command, args); err != nil {
		return nil, err
	}

	for {
		if cancel != nil && cancel() {
			return cancelledResponse, nil
		}

		line, err := c.stdout.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: reading response: %v", ErrConnectionLost, err)
		}

		var probe struct {
			Event *string `json:"event"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if probe.Event != nil {
			continue // log event interleaved with the response
		}
		return json.RawMessage(bytes.TrimSpace(line)), nil
	}
}

// sendNoWait writes a framed request without reading a response. Used for
// advisory notifications where blocking would stall a UI-critical caller.
func (c *client) sendNoWait(command string, args any) error {
	return c.write(command, args)
}

func (c *client) write(command string, args any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(request{Command: command, Args: args})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: writing request: %v", ErrConnectionLost, err)
	}
	if err := c.stdin.Flush(); err != nil {
		return fmt.Errorf("%w: flushing request: %v", ErrConnectionLost, err)
	}
	return nil
}

// healthCheck treats any I/O error or non-success reply as unhealthy.
func (c *client) healthCheck() bool {
	resp, err := c.send("health", nil, nil)
	if err != nil {
		return false
	}
	var result struct {
		Success bool `json:"success"`
	}
	if json.Unmarshal(resp, &result) != nil {
		return false
	}
	return result.Success
}

// kill terminates the process without ceremony; errors are ignored because
// the process may already be gone.
func (c *client) kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
}

// shutdown asks the worker to exit and waits for it.
func (c *client) shutdown() {
	_ = c.sendNoWait("exit", nil)
	if c.cmd != nil {
		_ = c.cmd.Wait()
	}
}
