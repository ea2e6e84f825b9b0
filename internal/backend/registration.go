package backend

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RegisteredState is the provider state that ends a registration wait.
const RegisteredState = "Registered"

// DefaultRegistrationInterval is the fixed delay between state checks.
const DefaultRegistrationInterval = 10 * time.Second

// Registrar issues provider registration calls. Registering an already
// registered provider must be a no-op on the service.
type Registrar interface {
	Register(ctx context.Context, namespace string) error
	RegistrationState(ctx context.Context, namespace string) (string, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RegisterAndWait registers namespace and polls at a fixed interval until the
// service reports it as registered.
func RegisterAndWait(ctx context.Context, r Registrar, namespace string, interval time.Duration, sleep Sleeper) error {
	if r == nil {
		return fmt.Errorf("no registrar available for %s", namespace)
	}
	if interval <= 0 {
		interval = DefaultRegistrationInterval
	}
	if sleep == nil {
		sleep = Sleep
	}
	if err := r.Register(ctx, namespace); err != nil {
		return fmt.Errorf("register resource provider %s: %w", namespace, err)
	}
	for {
		state, err := r.RegistrationState(ctx, namespace)
		if err != nil {
			return fmt.Errorf("check registration of %s: %w", namespace, err)
		}
		if strings.EqualFold(state, RegisteredState) {
			return nil
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}
