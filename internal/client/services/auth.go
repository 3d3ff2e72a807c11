package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: obtain tokens from the server and remember who signed in.
//   - CurrentUser: the remembered user, available offline.
//   - Logout: forget the remembered user.
//   - Ping: check server reachability.
//   - Close: release underlying client resources.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*User, error)
	CurrentUser(ctx context.Context) (*User, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// User is the signed-in account. UserID is 0 when the token carries no
// user_id claim.
type User struct {
	Username string
	UserID   int64
}

type authService struct {
	client client.Client
	store  *store.Store
	log    logging.Logger
}

func NewAuthService(c client.Client, st *store.Store, log logging.Logger) AuthService {
	return &authService{client: c, store: st, log: log}
}

// Login authenticates and stores the username and user id under the
// session keys, which survive a working-set purge.
func (a *authService) Login(ctx context.Context, username, password string) (*User, error) {
	if err := a.client.Login(ctx, username, password); err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	u := &User{Username: username}
	if id, ok := a.client.UserID(); ok {
		u.UserID = id
	}

	err := a.store.WithTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		if err := r.Reference.Set(ctx, models.KeyAuthUsername, []byte(u.Username)); err != nil {
			return err
		}
		return r.Reference.Set(ctx, models.KeyAuthUserID, []byte(strconv.FormatInt(u.UserID, 10)))
	})
	if err != nil {
		return nil, storageErr("auth.login", err)
	}
	a.log.Info(ctx, "signed in", "username", u.Username, "user_id", u.UserID)
	return u, nil
}

// CurrentUser returns nil when nobody has signed in on this device.
func (a *authService) CurrentUser(ctx context.Context) (*User, error) {
	repos := a.store.Repos()
	name, err := repos.Reference.Get(ctx, models.KeyAuthUsername)
	if err != nil {
		return nil, storageErr("auth.current_user", err)
	}
	if len(name) == 0 {
		return nil, nil
	}
	u := &User{Username: string(name)}
	raw, err := repos.Reference.Get(ctx, models.KeyAuthUserID)
	if err != nil {
		return nil, storageErr("auth.current_user", err)
	}
	if len(raw) > 0 {
		if id, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			u.UserID = id
		}
	}
	return u, nil
}

func (a *authService) Logout(ctx context.Context) error {
	err := a.store.WithTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		if err := r.Reference.Delete(ctx, models.KeyAuthUsername); err != nil {
			return err
		}
		return r.Reference.Delete(ctx, models.KeyAuthUserID)
	})
	if err != nil {
		return storageErr("auth.logout", err)
	}
	return nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
