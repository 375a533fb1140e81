package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Config selects the sinks. Console output is human-readable; the file sink
// gets one JSON record per line.
type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// DefaultFilePath is used when the file sink is enabled without a path.
const DefaultFilePath = "./out/output.log"

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Service owns the sinks and lets them be swapped while loggers are in use.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	file *os.File

	sink atomic.Pointer[zerolog.Logger]
}

// New builds a Service from cfg and returns it with its root Logger.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.sink.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Config returns the last applied config.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Apply replaces level and sinks. Loggers handed out earlier pick the change
// up on their next record. A file that cannot be opened is reported on stderr
// and skipped; with no sink left, output goes to the console.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		writers []io.Writer
		opened  *os.File
	)
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = DefaultFilePath
		}
		if f, err := openAppend(path); err != nil {
			fmt.Fprintf(os.Stderr, "logx: open %s: %v\n", path, err)
		} else {
			opened = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	s.sink.Store(&zl)

	prev := s.file
	s.file = opened
	s.cfg = cfg
	if prev != nil {
		_ = prev.Close()
	}
}

// Close releases the file sink. Records logged afterwards go to stderr.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zl := zerolog.New(consoleWriter(os.Stderr)).Level(s.current().GetLevel()).With().Timestamp().Logger()
	s.sink.Store(&zl)
	f := s.file
	s.file = nil
	if f == nil {
		return nil
	}
	return f.Close()
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func setGlobals() {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   timeFormat,
		FormatCaller: func(i any) string { s, _ := i.(string); return s },
	}
}
