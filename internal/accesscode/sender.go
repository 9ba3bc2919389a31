// Package accesscode delivers freshly issued access codes to their owners.
package accesscode

import (
	"context"
	"errors"
	"fmt"
)

// Sender delivers an access code to the user identified by login.
// Implementations must not log the code in production.
type Sender interface {
	Send(ctx context.Context, login, code string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, login, code string) error

func (f SenderFunc) Send(ctx context.Context, login, code string) error { return f(ctx, login, code) }

// MultiSender fans a code out to every sender. All senders are tried; failures are joined.
type MultiSender []Sender

func (m MultiSender) Send(ctx context.Context, login, code string) error {
	var errs []error
	for i, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, login, code); err != nil {
			errs = append(errs, fmt.Errorf("sender %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
