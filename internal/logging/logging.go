/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process. An explicit level overrides the
// environment default (debug in development, info otherwise).
func Setup(environment, level string) zerolog.Logger {
	return SetupWithWriter(environment, level, os.Stdout)
}

// SetupWithCapture is Setup plus a copy of every event, as raw JSON, written
// to capture.
func SetupWithCapture(environment, level string, capture io.Writer) zerolog.Logger {
	return setup(environment, level, os.Stdout, capture)
}

// SetupWithWriter configures zerolog to write to out. Output is JSON in
// production and console-formatted elsewhere.
func SetupWithWriter(environment, level string, out io.Writer) zerolog.Logger {
	return setup(environment, level, out, nil)
}

func setup(environment, level string, out, capture io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl := zerolog.InfoLevel
	if environment == "development" {
		lvl = zerolog.DebugLevel
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	var writer io.Writer = out
	if environment != "production" {
		writer = zerolog.ConsoleWriter{Out: out}
	}
	if capture != nil {
		writer = zerolog.MultiLevelWriter(writer, capture)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
	log.Logger = logger
	return logger
}
