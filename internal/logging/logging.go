package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"shoe-tracker/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
	fileOut  *sizeLimitedWriter
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// tee'd to stdout and a size limited file.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	var raw io.Writer = os.Stdout
	if path := strings.TrimSpace(cfg.File); path != "" {
		fw, err := newSizeLimitedWriter(path, cfg.MaxMB)
		if err != nil {
			return err
		}
		output = zerolog.MultiLevelWriter(output, fw)
		raw = io.MultiWriter(os.Stdout, fw)
		setFile(fw)
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger

	writerMu.Lock()
	writer = raw
	writerMu.Unlock()
	return nil
}

// Writer is the sink for non-zerolog JSON output such as the HTTP request log.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

// Close releases the log file, if any.
func Close() error {
	writerMu.Lock()
	fw := fileOut
	fileOut = nil
	writer = os.Stdout
	writerMu.Unlock()
	if fw != nil {
		return fw.Close()
	}
	return nil
}

func setFile(fw *sizeLimitedWriter) {
	writerMu.Lock()
	prev := fileOut
	fileOut = fw
	writerMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}
