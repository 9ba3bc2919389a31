// Package logging builds the zerolog logger shared by the registry commands.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at level. Development mode uses the human-readable
// console writer; otherwise lines are JSON.
func New(w io.Writer, development bool, level zerolog.Level) zerolog.Logger {
	out := w
	if development {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
