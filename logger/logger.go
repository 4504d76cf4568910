// Package logger provides adapters for popular logger libraries to work with
// the stm.Logger interface.
//
// The standard library's slog.Logger already implements stm.Logger directly.
//
// Example with zap:
//
//	zapLogger, _ := zap.NewProduction()
//	rt, err := stm.New(stm.WithLogger(logger.NewZap(zapLogger)))
//	if err != nil {
//	    panic(err)
//	}
//	v, err := stm.AtomicallyWith(ctx, rt, ref.Get())
package logger
