package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/alessio/shellescape"
	"go.uber.org/zap"
)

// CmdSpec describes a subprocess to run.
type CmdSpec struct {
	Path    string   // Binary path
	Args    []string // Arguments
	Env     []string // Extra KEY=VALUE pairs appended to the inherited environment.
	Dir     string   // Working directory; empty = inherit.
	Verbose bool     // Echo the command and mirror output to the terminal

	StdoutLine    func(string) // Called for each stdout line (if non-nil)
	StderrLine    func(string) // Called for each stderr line (if non-nil)
	CaptureStdout bool         // When false and StdoutLine is set, stdout is not buffered

	Log *zap.Logger // optional; receives the command line at debug level
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
	Err    error
}

// CmdRunner runs subprocesses. Tests substitute fakes.
type CmdRunner interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

type execRunner struct{}

// NewDefaultRunner returns a CmdRunner backed by os/exec.
func NewDefaultRunner() CmdRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	return Run(ctx, spec)
}

// maxLine bounds a single scanned line; yt-dlp --dump-json emits one large line.
const maxLine = 16 * 1024 * 1024

// Run executes the command and waits for it. Stderr is always captured.
// A non-zero exit returns an error naming the exit code, with CmdResult
// still populated.
func Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	line := shellescape.QuoteCommand(append([]string{spec.Path}, spec.Args...))
	if spec.Log != nil {
		spec.Log.Debug("running command", zap.String("cmd", line))
	}
	if spec.Verbose {
		fmt.Fprintf(os.Stderr, "+ %s\n", line)
	}

	if err := cmd.Start(); err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		keep := spec.CaptureStdout || spec.StdoutLine == nil
		scanLines(stdoutPipe, spec.StdoutLine, spec.Verbose, os.Stdout, &stdoutBuf, keep)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, spec.StderrLine, spec.Verbose, os.Stderr, &stderrBuf, true)
	}()

	// Pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
		Err:    waitErr,
	}
	if waitErr != nil {
		return res, fmt.Errorf("command failed (exit %d): %w", code, waitErr)
	}
	return res, nil
}

func scanLines(r io.Reader, fn func(string), mirror bool, mirrorTo io.Writer, buf *bytes.Buffer, keep bool) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	sc.Split(scanLinesOrCR)
	for sc.Scan() {
		line := sc.Text()
		if fn != nil {
			fn(line)
		}
		if mirror {
			fmt.Fprintln(mirrorTo, line)
		}
		if keep {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	// Keep draining so the child never blocks on a full pipe.
	if sc.Err() != nil {
		_, _ = io.Copy(io.Discard, r)
	}
}

// scanLinesOrCR splits on \n and on bare \r, which progress bars use to
// redraw in place.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' {
			return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
		}
		if b == '\r' {
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			if i+1 == len(data) && !atEOF {
				// Need one more byte to tell \r from \r\n.
				return 0, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
