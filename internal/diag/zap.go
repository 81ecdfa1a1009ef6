package diag

import "go.uber.org/zap"

// ZapTrace forwards records to l. Trace records log at info level.
func ZapTrace(l *zap.Logger) TraceFunc {
	if l == nil {
		l = zap.NewNop()
	}
	return func(rec Record) {
		fields := []zap.Field{
			zap.String("file", rec.File),
			zap.Int("line", rec.Line),
		}
		switch rec.Severity {
		case SeverityWarn:
			l.Warn(rec.Text, fields...)
		case SeverityError:
			l.Error(rec.Text, fields...)
		default:
			l.Info(rec.Text, fields...)
		}
	}
}

// ZapAssert logs the failed assertion and always asks for a breakpoint.
func ZapAssert(l *zap.Logger) AssertFunc {
	if l == nil {
		l = zap.NewNop()
	}
	return func(rep AssertReport) bool {
		l.Error(rep.String(),
			zap.String("expression", rep.Expression),
			zap.String("file", rep.File),
			zap.Int("line", rep.Line),
		)
		return true
	}
}
