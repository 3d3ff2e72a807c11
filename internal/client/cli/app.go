package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/config"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/facade"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/services"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

// OfflineMode is the facade surface the CLI drives.
type OfflineMode interface {
	State() facade.State
	EnableOfflineMode(ctx context.Context, req services.CheckoutRequest) (*models.CheckoutResult, error)
	DisableOfflineMode(ctx context.Context) (*models.CheckinResult, error)
	ForceDisableOfflineMode(ctx context.Context) error
	SyncNow(ctx context.Context) (*models.SyncResult, error)
	RefreshPendingCount(ctx context.Context) error
}

// Deps are the services the App dispatches to.
type Deps struct {
	Auth    services.AuthService
	Editor  services.EditorService
	Queue   services.SyncQueueService
	Checkin services.CheckinService
	Offline OfflineMode
}

type App struct {
	config  *config.Config
	auth    services.AuthService
	editor  services.EditorService
	queue   services.SyncQueueService
	checkin services.CheckinService
	offline OfflineMode
	log     logging.Logger

	user   *services.User
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, d Deps, log logging.Logger) *App {
	return &App{
		config:  c,
		auth:    d.Auth,
		editor:  d.Editor,
		queue:   d.Queue,
		checkin: d.Checkin,
		offline: d.Offline,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

// Run restores the stored session, then blocks in the REPL until the user
// exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.auth.Close(ctx)

	fmt.Fprintln(a.out, "DWR offline client (type 'help' for commands)")
	u, err := a.auth.CurrentUser(ctx)
	if err != nil {
		a.log.Warn(ctx, "failed to restore session", "error", err)
	}
	a.user = u
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

// getStatus renders the prompt prefix, e.g. "(jdoe online checked-out 3)".
func (a *App) getStatus() string {
	var parts []string
	if a.user != nil {
		parts = append(parts, a.user.Username)
	}
	s := a.offline.State()
	if s.IsOnline {
		parts = append(parts, "online")
	} else {
		parts = append(parts, "offline")
	}
	if s.IsOfflineMode {
		parts = append(parts, "checked-out")
		if s.PendingSyncCount > 0 {
			parts = append(parts, fmt.Sprint(s.PendingSyncCount))
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// report prints err for the user and returns it unchanged.
func (a *App) report(err error) error {
	if err != nil {
		fmt.Fprintln(a.out, "error:", common.Message(err, "command failed"))
	}
	return err
}
