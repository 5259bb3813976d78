package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// process is the transport to one engine instance. The broker owns exactly
// one at a time; tests substitute a scripted implementation.
type process interface {
	Start() error
	Send(cmd string) error
	// Lines delivers trimmed stdout lines and is closed when the process
	// exits for any reason.
	Lines() <-chan string
	Kill()
}

type execProcess struct {
	binary string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string

	mu sync.Mutex
}

func newExecProcess(binary string) process {
	return &execProcess{binary: binary}
}

func (p *execProcess) Start() error {
	cmd := exec.Command(p.binary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("start engine: %w", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.lines = make(chan string, 64)

	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			p.lines <- strings.TrimSpace(scanner.Text())
		}
		_ = cmd.Wait()
	}()
	return nil
}

func (p *execProcess) Send(cmd string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return fmt.Errorf("engine stdin closed")
	}
	_, err := io.WriteString(p.stdin, cmd+"\n")
	return err
}

func (p *execProcess) Lines() <-chan string { return p.lines }

func (p *execProcess) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
