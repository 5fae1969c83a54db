package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

// NewLogger builds a zap logger. format "json" gives the production
// encoder, anything else a console encoder.
func NewLogger(level, format string) (*Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return New(base), nil
}

func New(base *zap.Logger) *Logger {
	return &Logger{SugaredLogger: base.Sugar()}
}

func NewNop() *Logger {
	return New(zap.NewNop())
}

func (l *Logger) SSHConnectionAttempt(purpose, target string) {
	l.Infow("opening SSH connection",
		"type", "ssh_connection",
		"purpose", purpose,
		"target", target,
	)
}

func (l *Logger) DeploymentStep(step, app string) {
	l.Infow("executing deployment step",
		"type", "deployment",
		"step", step,
		"app", app,
	)
}

func (l *Logger) DeploymentError(step string, err error) {
	l.Errorw("deployment step failed",
		"type", "deployment",
		"step", step,
		"error", err.Error(),
	)
}

func (l *Logger) DeploymentSuccess(step string) {
	l.Infow("deployment step succeeded",
		"type", "deployment",
		"step", step,
	)
}
