package notify

import "go.uber.org/zap"

// Notifier es el equivalente de un toast: avisos no fatales que el usuario
// debe ver (un guardado que no persistió, una cuota resuelta por fallback).
type Notifier interface {
	Notify(level Level, message string)
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type zapNotifier struct {
	logger *zap.Logger
}

// NewZapNotifier envía los avisos al logger del servicio.
func NewZapNotifier(logger *zap.Logger) Notifier {
	return &zapNotifier{logger: logger}
}

func (n *zapNotifier) Notify(level Level, message string) {
	switch level {
	case LevelWarning:
		n.logger.Warn("user notice", zap.String("message", message))
	case LevelError:
		n.logger.Error("user notice", zap.String("message", message))
	case LevelInfo:
		n.logger.Info("user notice", zap.String("message", message))
	default:
		n.logger.Info("user notice", zap.String("message", message))
	}
}

type disabledNotifier struct{}

// NewDisabledNotifier descarta todos los avisos.
func NewDisabledNotifier() Notifier {
	return disabledNotifier{}
}

func (disabledNotifier) Notify(Level, string) {}
