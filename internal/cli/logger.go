// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFormat selects the zap configuration the CLI logs with
type LogFormat string

const (
	// LogFormatConsole is zap's development config: human readable lines
	LogFormatConsole LogFormat = "console"
	// LogFormatJSON is zap's production config: one JSON object per line
	LogFormatJSON LogFormat = "json"
)

func ParseLogFormat(s string) (LogFormat, error) {
	switch f := LogFormat(s); f {
	case LogFormatConsole, LogFormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want console or json)", s)
	}
}

// maxVerbosity caps -v so the zap level stays within int8
const maxVerbosity = 10

// newLogger returns a logger writing to w. Each -v enables one more logr
// V-level, which zapr maps onto negative zap levels.
func newLogger(w io.Writer, format LogFormat, verbosity int) logr.Logger {
	verbosity = min(max(verbosity, 0), maxVerbosity)

	var encoder zapcore.Encoder
	var options []zap.Option
	switch format {
	case LogFormatJSON:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		options = append(options, zap.Development())
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(zapcore.Level(-verbosity)))
	return zapr.NewLogger(zap.New(core, options...))
}
