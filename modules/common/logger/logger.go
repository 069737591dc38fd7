package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New - 서비스 공용 zerolog 로거 생성 (development 환경은 콘솔 출력)
func New(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stdout
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "quel-hairfit").
		Logger()
}

// Module - 모듈 태그가 붙은 하위 로거
func Module(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("module", name).Logger()
}
