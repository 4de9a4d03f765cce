package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/smokewatch/internal/logger"
)

//nolint:gochecknoglobals // paho loggers are process-wide.
var routeOnce sync.Once

// pahoLogger adapts a zap logging method to paho's Logger interface.
type pahoLogger struct {
	logf func(template string, args ...any)
}

// Println implements pahomqtt.Logger.
func (l pahoLogger) Println(v ...any) {
	l.logf("%s", strings.TrimSpace(fmt.Sprintln(v...)))
}

// Printf implements pahomqtt.Logger.
func (l pahoLogger) Printf(format string, v ...any) {
	l.logf(strings.TrimSpace(format), v...)
}

// routeLibraryLogs sends paho's warning and error output to zap once per process.
// Debug output stays off because paho logs every packet at that level.
func routeLibraryLogs(ctx context.Context) {
	routeOnce.Do(func() {
		l := newLibraryLogger(ctx)

		pahomqtt.CRITICAL = pahoLogger{logf: l.Errorf}
		pahomqtt.ERROR = pahoLogger{logf: l.Errorf}
		pahomqtt.WARN = pahoLogger{logf: l.Warnf}
	})
}

func newLibraryLogger(ctx context.Context) *zap.SugaredLogger {
	return logger.FromContext(ctx).
		Named("paho").
		WithOptions(logger.WithMinLevel(zapcore.WarnLevel))
}
