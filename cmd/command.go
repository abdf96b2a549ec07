package cmd

import (
	"bytes"
	"context"
	"fmt"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"gopkg.in/go-mixed/deadline.v1/deadline"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Command represents a single command which can be executed under a deadline.
// A Command holds no state of its runs, so it can be executed many times,
// even while an abandoned run is still going on in background.
type Command struct {
	Path string
	Args []string

	// Env nil means the environment of the current process
	Env        []string
	WorkingDir string
	// WaitDelay bounds the wait for the output pipes after the process was killed
	WaitDelay time.Duration

	stdoutWriters []io.Writer
	stderrWriters []io.Writer
	encoding      encoding.Encoding
	useShell      bool
}

// Option configures a Command
type Option func(c *Command)

// EnvVars represents a map where the key is the name of the env variable
// and the value is the value of the variable
//
// Example:
//
//	env := map[string]string{"ENV": "VALUE"}
type EnvVars map[string]string

// Result the output of one run
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Combined the output of stderr and stdout according to their timeline
	Combined string
	Duration time.Duration
}

// ExitError the command ran but exited with a non-zero code, the output is kept in Result
type ExitError struct {
	Result  *Result
	command string
	err     *exec.ExitError
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %s", e.command, e.err)
}

func (e *ExitError) Unwrap() error {
	return e.err
}

func (e *ExitError) ExitCode() int {
	return e.Result.ExitCode
}

// StartError the command could not be started, such as a missing working directory
type StartError struct {
	command string
	err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %s", e.command, e.err)
}

func (e *StartError) Unwrap() error {
	return e.err
}

// NewCommand creates a new command
// You can add option with variadic option argument
//
// Example:
//
//	c := cmd.NewCommand("echo", []string{"hello"}, func(c *cmd.Command) {
//		c.WorkingDir = "/tmp"
//	})
//	result, err := c.Execute()
//
// A path which is not an executable file is run by the shell
//
//	c := cmd.NewCommand("echo hello | wc -c", nil, cmd.WithStandardStreams)
func NewCommand(path string, args []string, options ...Option) *Command {
	c := &Command{
		Path:      path,
		Args:      args,
		WaitDelay: time.Second,
	}

	if filepath.Base(c.Path) == c.Path {
		if lp, err := exec.LookPath(c.Path); err == nil {
			c.Path = lp
		}
	}
	c.useShell = !c.IsExecutable()

	for _, o := range options {
		o(c)
	}

	return c
}

// ParseCommandLine splits a command line into path and arguments the way a shell does.
// A line with pipes, redirections, command lists, variables or command substitutions
// is run by the shell as a whole, so the shell expands it.
//
//	c, err := cmd.ParseCommandLine(`sh -c "sleep 1; echo $HOME"`)
func ParseCommandLine(line string, options ...Option) (*Command, error) {
	parser := shellwords.NewParser()

	words, err := parser.Parse(line)
	if err != nil {
		return nil, errors.Wrapf(err, "parse command line \"%s\"", line)
	}

	if parser.Position >= 0 || strings.ContainsAny(line, "$`") {
		c := NewCommand(line, nil, options...)
		c.useShell = true
		return c, nil
	}

	if len(words) == 0 {
		return nil, errors.Errorf("empty command line \"%s\"", line)
	}

	return NewCommand(words[0], words[1:], options...), nil
}

// LookupEncoding finds an encoding by its html name or alias, such as "gbk", "shift_jis", "windows-1252"
func LookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown output encoding \"%s\"", name)
	}
	return enc, nil
}

// WithOutputEncoding decodes stdout and stderr from enc to UTF-8
func WithOutputEncoding(enc encoding.Encoding) Option {
	return func(c *Command) {
		c.encoding = enc
	}
}

// WithStandardStreams is used as an option by the NewCommand constructor function and writes the output streams
// to stderr and stdout of the operating system
//
// Example:
//
//	c := cmd.NewCommand("echo", []string{"hello"}, cmd.WithStandardStreams)
//	c.Execute()
func WithStandardStreams(c *Command) {
	c.stdoutWriters = append(c.stdoutWriters, os.Stdout)
	c.stderrWriters = append(c.stderrWriters, os.Stderr)
}

// WithCustomStdout allows to add custom writers to stdout
func WithCustomStdout(writers ...io.Writer) Option {
	return func(c *Command) {
		c.stdoutWriters = append(c.stdoutWriters, writers...)
	}
}

// WithCustomStderr allows to add custom writers to stderr
func WithCustomStderr(writers ...io.Writer) Option {
	return func(c *Command) {
		c.stderrWriters = append(c.stderrWriters, writers...)
	}
}

// WithWorkingDir sets the current working directory
func WithWorkingDir(dir string) Option {
	return func(c *Command) {
		c.WorkingDir = dir
	}
}

// WithEnvironmentVariables adds environment variables to the env of the current process
func WithEnvironmentVariables(env EnvVars) Option {
	return func(c *Command) {
		for key, value := range env {
			c.AddEnv(key, value)
		}
	}
}

// WithCleanEnvironment the command only gets the given variables
func WithCleanEnvironment(env EnvVars) Option {
	return func(c *Command) {
		c.Env = []string{}
		WithEnvironmentVariables(env)(c)
	}
}

func (c *Command) IsExecutable() bool {
	fileInfo, err := os.Stat(c.Path)
	if err != nil || fileInfo.IsDir() {
		return false
	}

	if runtime.GOOS == "windows" {
		return true
	}

	return fileInfo.Mode()&0111 != 0
}

// AddEnv adds an environment variable to the command
// If a variable gets passed like ${VAR_NAME} the env variable will be read out by the current shell
func (c *Command) AddEnv(key string, value string) {
	if c.Env == nil {
		c.Env = os.Environ()
	}
	value = os.ExpandEnv(value)
	c.Env = append(c.Env, fmt.Sprintf("%s=%s", key, value))
}

// Job the command as deadline work, named by its path, the args are shown in the timeout log.
// The job's caller is the code calling Job
func (c *Command) Job() *deadline.Job[*Result] {
	args := make([]any, len(c.Args))
	for i, arg := range c.Args {
		args[i] = arg
	}
	return deadline.NewJob(c.Path, c.ExecuteContext, args...).CallerSkip(1)
}

// Execute executes the command and waits for it
func (c *Command) Execute() (*Result, error) {
	return c.ExecuteContext(context.Background())
}

// ExecuteContext executes the command with a context.Context, the process is killed when ctx is done.
//
//   - the command could not start: error
//   - exited with non-zero code: the Result and an *ExitError
func (c *Command) ExecuteContext(ctx context.Context) (*Result, error) {
	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}

	stdoutWriter := c.output(append([]io.Writer{&stdout, combined}, c.stdoutWriters...))
	stderrWriter := c.output(append([]io.Writer{&stderr, combined}, c.stderrWriters...))

	cmd := createBaseCommand(c, ctx)
	cmd.Env = c.Env
	cmd.Dir = c.WorkingDir
	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter
	cmd.WaitDelay = c.WaitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &StartError{command: c.String(), err: err}
	}
	err := cmd.Wait()

	// 刷新解码器中剩余的字节
	flushErr := stdoutWriter.Close()
	if err1 := stderrWriter.Close(); flushErr == nil {
		flushErr = err1
	}

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Result: result, command: c.String(), err: exitErr}
	case err != nil:
		return result, errors.Wrapf(err, "wait %s", c)
	case flushErr != nil:
		return result, errors.Wrapf(flushErr, "decode output of %s", c)
	}

	return result, nil
}

func (c *Command) output(writers []io.Writer) io.WriteCloser {
	w := io.MultiWriter(writers...)
	if c.encoding == nil {
		return nopCloser{w}
	}
	return transform.NewWriter(w, c.encoding.NewDecoder())
}

func (c *Command) String() string {
	cmd := createBaseCommand(c, context.TODO())
	return cmd.String()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

// lockedBuffer stdout and stderr are copied by different goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
