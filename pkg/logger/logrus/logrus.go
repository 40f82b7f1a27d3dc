package logrus

import (
	"github.com/quantarc/fuzzywheel/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Adapter wraps a logrus entry behind the logger facade. Useful when a host
// application already routes everything through logrus hooks.
type Adapter struct {
	entry *logrus.Entry
}

func New(level logger.Level) *Adapter {
	l := logrus.New()
	l.SetLevel(toLogrusLevel(level))
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &Adapter{entry: logrus.NewEntry(l)}
}

func NewAdapter(entry *logrus.Entry) *Adapter {
	return &Adapter{entry: entry}
}

func (a *Adapter) WithField(key string, value any) logger.Logger {
	return &Adapter{entry: a.entry.WithField(key, value)}
}

func (a *Adapter) WithFields(fields map[string]any) logger.Logger {
	return &Adapter{entry: a.entry.WithFields(logrus.Fields(fields))}
}

func (a *Adapter) WithError(err error) logger.Logger {
	return &Adapter{entry: a.entry.WithError(err)}
}

func (a *Adapter) Print(args ...any) { a.entry.Print(args...) }
func (a *Adapter) Trace(args ...any) { a.entry.Trace(args...) }
func (a *Adapter) Debug(args ...any) { a.entry.Debug(args...) }
func (a *Adapter) Info(args ...any)  { a.entry.Info(args...) }
func (a *Adapter) Warn(args ...any)  { a.entry.Warn(args...) }
func (a *Adapter) Error(args ...any) { a.entry.Error(args...) }
func (a *Adapter) Fatal(args ...any) { a.entry.Fatal(args...) }
func (a *Adapter) Panic(args ...any) { a.entry.Panic(args...) }

func (a *Adapter) Printf(format string, args ...any) { a.entry.Printf(format, args...) }
func (a *Adapter) Tracef(format string, args ...any) { a.entry.Tracef(format, args...) }
func (a *Adapter) Debugf(format string, args ...any) { a.entry.Debugf(format, args...) }
func (a *Adapter) Infof(format string, args ...any)  { a.entry.Infof(format, args...) }
func (a *Adapter) Warnf(format string, args ...any)  { a.entry.Warnf(format, args...) }
func (a *Adapter) Errorf(format string, args ...any) { a.entry.Errorf(format, args...) }
func (a *Adapter) Fatalf(format string, args ...any) { a.entry.Fatalf(format, args...) }
func (a *Adapter) Panicf(format string, args ...any) { a.entry.Panicf(format, args...) }

func (a *Adapter) SetLevel(level logger.Level) {
	a.entry.Logger.SetLevel(toLogrusLevel(level))
}

func (a *Adapter) GetLevel() logger.Level {
	return toLevel(a.entry.Logger.GetLevel())
}

func toLogrusLevel(level logger.Level) logrus.Level {
	switch level {
	case logger.TraceLevel:
		return logrus.TraceLevel
	case logger.DebugLevel:
		return logrus.DebugLevel
	case logger.InfoLevel:
		return logrus.InfoLevel
	case logger.WarnLevel:
		return logrus.WarnLevel
	case logger.ErrorLevel:
		return logrus.ErrorLevel
	case logger.FatalLevel:
		return logrus.FatalLevel
	case logger.PanicLevel:
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func toLevel(level logrus.Level) logger.Level {
	switch level {
	case logrus.TraceLevel:
		return logger.TraceLevel
	case logrus.DebugLevel:
		return logger.DebugLevel
	case logrus.InfoLevel:
		return logger.InfoLevel
	case logrus.WarnLevel:
		return logger.WarnLevel
	case logrus.ErrorLevel:
		return logger.ErrorLevel
	case logrus.FatalLevel:
		return logger.FatalLevel
	case logrus.PanicLevel:
		return logger.PanicLevel
	default:
		return logger.NoLevel
	}
}
