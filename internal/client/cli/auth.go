package cli

import (
	"context"
	"errors"
	"fmt"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and authenticates against the API.
// The session is stored so later runs start logged in.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	if userName == "" {
		return a.report(errors.New("username is required"))
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.auth.Login(ctx, userName, password)
	if err != nil {
		return a.report(err)
	}
	a.user = u
	fmt.Fprintf(a.out, "Logged in as %s\n", u.Username)
	return nil
}

// Logout drops the stored session. Checked-out data is kept.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return a.report(err)
	}
	a.user = nil
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
