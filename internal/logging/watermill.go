// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillLogger implements watermill.LoggerAdapter on zerolog.
//
// Watermill is chatty at info level about router and subscriber lifecycle,
// so its Info calls are written at debug unless Verbose is set.
type WatermillLogger struct {
	logger  zerolog.Logger
	verbose bool
}

var _ watermill.LoggerAdapter = (*WatermillLogger)(nil)

// NewWatermillLogger adapts logger for watermill.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatermillLogger(logger zerolog.Logger, verbose bool) *WatermillLogger {
	return &WatermillLogger{logger: logger, verbose: verbose}
}

// Error logs at error level.
func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	withFields(l.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs at info level when verbose, debug otherwise.
func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	event := l.logger.Debug()
	if l.verbose {
		event = l.logger.Info()
	}
	withFields(event, fields).Msg(msg)
}

// Debug logs at debug level.
func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

// Trace logs at trace level.
func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	withFields(l.logger.Trace(), fields).Msg(msg)
}

// With returns an adapter that adds fields to every entry.
func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &WatermillLogger{logger: ctx.Logger(), verbose: l.verbose}
}

func withFields(event *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	return event
}
