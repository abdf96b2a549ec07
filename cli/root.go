package cli

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"gopkg.in/go-mixed/deadline.v1/cmd"
	"gopkg.in/go-mixed/deadline.v1/conf"
	"gopkg.in/go-mixed/deadline.v1/deadline"
	"gopkg.in/go-mixed/deadline.v1/event"
	"gopkg.in/go-mixed/deadline.v1/logger"
	"gopkg.in/go-mixed/deadline.v1/metrics"
	timeUtils "gopkg.in/go-mixed/deadline.v1/utils/time"
	"net"
	"net/http"
	"time"
)

// 退出码, 与 coreutils timeout 一致
const (
	ExitFailed     = 1
	ExitInvalid    = 2
	ExitTimedOut   = 124
	ExitNotStarted = 127
)

type flags struct {
	configs         []string
	deadline        string
	cancelOnTimeout bool
	waitAbandoned   string
	outputEncoding  string
	metricsListen   string
	logOutput       bool
}

// exitError 携带退出码, 命令本身的退出码也通过它返回
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// NewRootCommand deadline-run 命令
func NewRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "deadline-run [flags] -- command [args...]",
		Short: "deadline-run - 在限定时间内运行一个命令",
		Long: `deadline-run 在限定时间内运行一个命令, 超时后不再等待它, 以124退出。

默认情况下超时的命令不会被终止, 会在后台继续运行, 直到本进程退出。

使用示例：
  # 最多等待2.5秒
  deadline-run --deadline 2.5 -- curl -s http://example.com

  # 只有一个参数时, 按shell的规则解析, 管道、重定向交给shell运行
  deadline-run --deadline 300ms "sleep 1 | echo done"

  # 超时后终止命令
  deadline-run --deadline 1s --cancel-on-timeout -- sleep 10`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			return run(c, f, args)
		},
	}

	fs := root.Flags()
	fs.StringSliceVarP(&f.configs, "config", "c", nil, "JSON/YAML 配置文件, 可以多个, 后面的覆盖前面的")
	fs.StringVarP(&f.deadline, "deadline", "d", "", "最多等待的时间, 比如: 2.5, 2.5s, 300ms")
	fs.BoolVar(&f.cancelOnTimeout, "cancel-on-timeout", false, "超时后终止命令")
	fs.StringVar(&f.waitAbandoned, "wait-abandoned", "", "超时后, 退出前最多再等待命令的时间, 比如: 5s")
	fs.StringVar(&f.outputEncoding, "output-encoding", "", "命令输出的编码, 比如: gbk")
	fs.StringVar(&f.metricsListen, "metrics-listen", "", "提供 /metrics 的地址, 比如: 127.0.0.1:9100")
	fs.BoolVar(&f.logOutput, "log-output", false, "同时将命令的输出写入日志")

	return root
}

// Execute 执行根命令, 返回进程的退出码
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, NewRootCommand(), args)
}

func execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), "deadline-run:", exitErr.err)
		}
		return exitErr.code
	}

	// cobra 自身的参数错误
	_, _ = fmt.Fprintln(root.ErrOrStderr(), "deadline-run:", err)
	return ExitInvalid
}

func invalid(err error) error {
	return &exitError{code: ExitInvalid, err: err}
}

// loadSettings 配置文件, 然后是命令行参数
func loadSettings(c *cobra.Command, f *flags) (*conf.Settings, error) {
	settings := conf.DefaultSettings()
	if len(f.configs) > 0 {
		if err := conf.LoadSettings(&settings, f.configs...); err != nil {
			return nil, err
		}
	}

	fs := c.Flags()
	if fs.Changed("deadline") {
		d, err := timeUtils.ParseDuration(f.deadline)
		if err != nil {
			return nil, errors.Wrap(err, "--deadline")
		}
		settings.Deadline = d.Seconds()
	}
	if fs.Changed("wait-abandoned") {
		d, err := timeUtils.ParseDuration(f.waitAbandoned)
		if err != nil {
			return nil, errors.Wrap(err, "--wait-abandoned")
		}
		settings.WaitAbandoned = d.Seconds()
	}
	if fs.Changed("cancel-on-timeout") {
		settings.CancelOnTimeout = f.cancelOnTimeout
	}
	if fs.Changed("output-encoding") {
		settings.OutputEncoding = f.outputEncoding
	}
	if fs.Changed("metrics-listen") {
		settings.Metrics.Listen = f.metricsListen
	}

	if err := conf.ValidateSettings(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func buildCommand(c *cobra.Command, settings *conf.Settings, log *logger.Logger, logOutput bool, args []string) (*cmd.Command, []func(), error) {
	var closers []func()
	options := []cmd.Option{
		cmd.WithCustomStdout(c.OutOrStdout()),
		cmd.WithCustomStderr(c.ErrOrStderr()),
	}

	if settings.OutputEncoding != "" {
		enc, err := cmd.LookupEncoding(settings.OutputEncoding)
		if err != nil {
			return nil, nil, err
		}
		options = append(options, cmd.WithOutputEncoding(enc))
	}

	if logOutput {
		stdout := log.ToWriter(zapcore.InfoLevel, "stream", "stdout")
		stderr := log.ToWriter(zapcore.WarnLevel, "stream", "stderr")
		options = append(options, cmd.WithCustomStdout(stdout), cmd.WithCustomStderr(stderr))
		closers = append(closers, func() { _ = stdout.Close() }, func() { _ = stderr.Close() })
	}

	if len(args) == 1 {
		command, err := cmd.ParseCommandLine(args[0], options...)
		return command, closers, err
	}
	return cmd.NewCommand(args[0], args[1:], options...), closers, nil
}

// serveMetrics 在listen上提供 /metrics, 返回关闭函数
func serveMetrics(reg *metrics.Registry, listen string, log *logger.Logger) (func(), error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, errors.Wrapf(err, "listen metrics on %s", listen)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "listen", listen, "error", err)
		}
	}()
	log.Info("metrics server started", "listen", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func run(c *cobra.Command, f *flags, args []string) error {
	settings, err := loadSettings(c, f)
	if err != nil {
		return invalid(err)
	}

	log, err := logger.BuildGlobalLogger(settings.Logger)
	if err != nil {
		return invalid(err)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()

	params := deadline.Params{
		Name:            "deadline-run",
		CancelOnTimeout: settings.CancelOnTimeout,
		Events:          event.NewEmitter(16),
	}

	if settings.Metrics.Listen != "" {
		reg := metrics.NewRegistry(&prometheus.Opts{
			Namespace: settings.Metrics.Namespace,
			Subsystem: settings.Metrics.Subsystem,
		})
		params.Metrics = metrics.NewExecutorCollectors(reg)

		stop, err := serveMetrics(reg, settings.Metrics.Listen, log)
		if err != nil {
			return invalid(err)
		}
		defer stop()
	}

	params.Events.Subscribe(event.TopicAbandonedDone, func(payload any) {
		if done, ok := payload.(event.AbandonedDone); ok {
			log.Info("timed out command finished", "job", done.Job, "elapsed", timeUtils.DurationToString(done.Elapsed), "error", done.Err)
		}
	})
	go params.Events.RunConsumer(ctx)

	command, closers, err := buildCommand(c, settings, log, f.logOutput, args)
	if err != nil {
		return invalid(err)
	}
	defer func() {
		for _, fn := range closers {
			fn()
		}
	}()

	executor := deadline.NewExecutor(params, log)
	outcome, err := deadline.Run(ctx, executor, command.Job(), settings.DeadlineDuration())
	if err != nil {
		return invalid(err)
	}

	return exitCode(outcome, executor, settings, log)
}

func exitCode(outcome deadline.Outcome[*cmd.Result], executor *deadline.Executor, settings *conf.Settings, log *logger.Logger) error {
	switch outcome.State() {
	case deadline.Completed:
		return nil
	case deadline.Failed:
		var exitErr *cmd.ExitError
		if errors.As(outcome.Err(), &exitErr) {
			return &exitError{code: exitErr.ExitCode()}
		}
		var startErr *cmd.StartError
		if errors.As(outcome.Err(), &startErr) {
			return &exitError{code: ExitNotStarted, err: outcome.Err()}
		}
		return &exitError{code: ExitFailed, err: outcome.Err()}
	}

	if wait := settings.WaitAbandonedDuration(); wait > 0 {
		if !executor.WaitAbandoned(wait) {
			log.Warn("timed out command still running, exiting", "wait", wait)
		}
	}
	return &exitError{code: ExitTimedOut}
}
