package logger

import (
	"github.com/utahta/go-cronowriter"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/go-mixed/deadline.v1/utils/core"
	"io"
	"os"
	"path/filepath"
	"sync"
)

type Logger struct {
	logger *zap.Logger
	shared *sharedState
}

// 所有由 With/Named 派生出来的Logger共用
type sharedState struct {
	FilePath      string
	ErrorFilePath string

	consoleLevel zap.AtomicLevel
	fileLevel    zap.AtomicLevel
	fileWriters  *sync.Map // filename: io.WriteCloser, 同一个文件只会打开一次
}

// NewLogger 新建一个独立的logger
//
//	stdout 输出ERROR以下的日志, stderr 输出ERROR及以上的日志
//	FilePath 非空时, 按天切割写入到文件, 比如: logs/app.2024-01-01.log
//	ErrorFilePath 非空时, ERROR及以上的日志单独写入到此文件中
func NewLogger(options LoggerOptions) (*Logger, error) {
	shared := &sharedState{
		FilePath:      options.FilePath,
		ErrorFilePath: options.ErrorFilePath,

		consoleLevel: zap.NewAtomicLevelAt(toZapLevel(core.If(options.ConsoleMinLevel != "", options.ConsoleMinLevel, os.Getenv(ZapConsoleLevel)))),
		fileLevel:    zap.NewAtomicLevelAt(toZapLevel(core.If(options.FileMinLevel != "", options.FileMinLevel, os.Getenv(ZapFileLevel)))),
		fileWriters:  &sync.Map{},
	}

	cores, err := shared.buildCores(core.If(options.FileEncoder != "", options.FileEncoder, os.Getenv(ZapFileEncoder)))
	if err != nil {
		_ = shared.close()
		return nil, err
	}

	return &Logger{
		logger: zap.New(zapcore.NewTee(cores...), defaultOptions()...),
		shared: shared,
	}, nil
}

// NewFromCore 使用外部的zapcore.Core创建logger, 比如测试时使用 zaptest/observer
func NewFromCore(c zapcore.Core, options ...Option) *Logger {
	return &Logger{
		logger: zap.New(c, append(defaultOptions(), options...)...),
		shared: &sharedState{
			consoleLevel: zap.NewAtomicLevelAt(zap.DebugLevel),
			fileLevel:    zap.NewAtomicLevelAt(zap.DebugLevel),
			fileWriters:  &sync.Map{},
		},
	}
}

// NewNop 不输出任何日志
func NewNop() *Logger {
	return NewFromCore(zapcore.NewNopCore())
}

func defaultOptions() []zap.Option {
	return []zap.Option{
		zap.WithCaller(true),
		zap.AddCallerSkip(1), // 当前类的Debug、Info是封装函数，frame多了一层，故此处+1
		zap.AddStacktrace(zap.LevelEnablerFunc(errorLevelFn)),
	}
}

func (s *sharedState) buildCores(fileEncoder string) ([]zapcore.Core, error) {
	errorLevelFunc := zap.LevelEnablerFunc(errorLevelFn)
	consoleEncoder := makeEncoder("console")

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(s.consoleLevelFunc)), // stdout输出
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), errorLevelFunc),                           // stderr输出
	}

	if s.FilePath == "" {
		return cores, nil
	}

	encoder := makeEncoder(fileEncoder)
	fileSyncer, err := s.getFileWriter(s.FilePath)
	if err != nil {
		return nil, err
	}
	cores = append(cores, zapcore.NewCore(encoder, fileSyncer, zap.LevelEnablerFunc(s.fileLevelFunc))) // 常规信息的文件输出

	if s.ErrorFilePath != "" {
		errorSyncer, err := s.getFileWriter(s.ErrorFilePath)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, errorSyncer, errorLevelFunc)) // 错误log单独输出
	} else {
		cores = append(cores, zapcore.NewCore(encoder, fileSyncer, errorLevelFunc)) // 错误和常规的log在一个文件
	}

	return cores, nil
}

func (s *sharedState) fileLevelFunc(level zapcore.Level) bool {
	return level >= s.fileLevel.Level() && level < zap.ErrorLevel
}

func (s *sharedState) consoleLevelFunc(level zapcore.Level) bool {
	return level >= s.consoleLevel.Level() && level < zap.ErrorLevel
}

func (s *sharedState) getFileWriter(filename string) (zapcore.WriteSyncer, error) {
	// 已存在writer，直接返回
	if w, ok := s.fileWriters.Load(filename); ok {
		return zapcore.AddSync(w.(io.Writer)), nil
	}

	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return nil, err
	}

	ext := filepath.Ext(filename)
	pattern := filename[0:len(filename)-len(ext)] + ".%Y-%m-%d" + ext
	writer, err := cronowriter.New(pattern, cronowriter.WithMutex())
	if err != nil {
		return nil, err
	}

	actual, _ := s.fileWriters.LoadOrStore(filename, writer)
	return zapcore.AddSync(actual.(io.Writer)), nil
}

func (s *sharedState) close() error {
	var err error
	s.fileWriters.Range(func(key, value any) bool {
		if c, ok := value.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
		s.fileWriters.Delete(key)
		return true
	})
	return err
}

// SetFileLevel 修改文件输出的最低Level，可实时修改，对派生出来的Logger同样生效。无法关闭ErrorLevel及以上的输出
func (log *Logger) SetFileLevel(level zapcore.Level) *Logger {
	log.shared.fileLevel.SetLevel(level)
	return log
}

// SetConsoleLevel 修改控制台输出的最低Level，可实时修改，对派生出来的Logger同样生效。无法关闭ErrorLevel及以上的输出
//
//	如果不想输出Info、Debug、Warn，可以这样: SetConsoleLevel(zap.ErrorLevel)
func (log *Logger) SetConsoleLevel(level zapcore.Level) *Logger {
	log.shared.consoleLevel.SetLevel(level)
	return log
}

// ZapLogger 返回给外部使用的zap logger
func (log *Logger) ZapLogger() *zap.Logger {
	// 需要减少一层的frame
	return log.logger.WithOptions(zap.AddCallerSkip(-1))
}

// Close 刷新并关闭所有文件, 之后不要再写入日志
func (log *Logger) Close() error {
	return multierr.Append(log.Sync(), log.shared.close())
}
