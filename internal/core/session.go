package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// BindSession keeps store in step with idp: signing in loads that user's
// collection, signing out clears it. Switching identity clears before
// reloading. The current identity is applied before BindSession returns and
// its load error, if any, is returned. The returned func detaches the
// binding.
func BindSession(ctx context.Context, idp IdentityProvider, store TaskStore, log logrus.FieldLogger) (func(), error) {
	if log == nil {
		log = discardLogger()
	}

	apply := func(c IdentityChange) error {
		switch c.State {
		case IdentitySignedIn:
			if c.Identity == nil {
				return nil
			}
			if store.UserID() == c.Identity.ID && store.State() == LoadStateIdle {
				return nil
			}
			if store.UserID() != "" {
				store.Clear()
			}
			if err := store.Load(ctx, c.Identity.ID); err != nil {
				log.WithError(err).WithField("user_id", c.Identity.ID).Warn("session load failed")
				return err
			}
		case IdentitySignedOut:
			store.Clear()
		}
		return nil
	}

	unsubscribe := idp.Subscribe(func(c IdentityChange) { _ = apply(c) })

	current := IdentityChange{State: idp.State()}
	if id, ok := idp.Current(); ok {
		current.Identity = &id
	}
	return unsubscribe, apply(current)
}
