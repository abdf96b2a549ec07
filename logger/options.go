package logger

type LoggerOptions struct {
	// FilePath 为空时只输出到控制台
	FilePath      string `json:"file_path" yaml:"file_path"`
	ErrorFilePath string `json:"error_file_path" yaml:"error_file_path"`

	FileEncoder     string `json:"file_encoder" yaml:"file_encoder" validate:"omitempty,oneof=console json"`
	FileMinLevel    string `json:"file_level" yaml:"file_level"`
	ConsoleMinLevel string `json:"console_level" yaml:"console_level"`
}

// DefaultLoggerOptions 只输出到控制台, 级别可以通过环境变量修改
func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		FilePath:      "",
		ErrorFilePath: "",

		FileEncoder:     "console",
		FileMinLevel:    "",
		ConsoleMinLevel: "",
	}
}
