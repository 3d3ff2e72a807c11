package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/services"
)

const timeLayout = "2006-01-02 15:04"

// Status prints connectivity, the active checkout and pending work.
func (a *App) Status(ctx context.Context) error {
	s := a.offline.State()

	fmt.Fprintf(a.out, "Network:   %s\n", onlineLabel(s.IsOnline))
	if !s.IsOfflineMode || s.Checkout == nil {
		fmt.Fprintln(a.out, "Offline mode: disabled")
	} else {
		c := s.Checkout
		fmt.Fprintf(a.out, "Offline mode: enabled (checkout %s, rig %d, %d records)\n", c.CheckoutID, c.RigID, c.RecordCount)
		fmt.Fprintf(a.out, "Expires:   %s\n", c.ExpiresAt.Local().Format(timeLayout))
		fmt.Fprintf(a.out, "Pending:   %d\n", s.PendingSyncCount)

		if sum, err := a.checkin.PendingChangesSummary(ctx); err == nil {
			fmt.Fprintf(a.out, "Changes:   %d DWRs, %d work assignments, %d time records, %d charges\n",
				sum.DWRs, sum.WorkAssignments, sum.TimeRecords, sum.Charges)
		}
	}
	if s.LastSyncAt != nil {
		fmt.Fprintf(a.out, "Last sync: %s\n", s.LastSyncAt.Local().Format(timeLayout))
	}
	if s.Error != "" {
		fmt.Fprintf(a.out, "Error:     %s\n", s.Error)
	}
	for _, e := range s.SyncErrors {
		fmt.Fprintf(a.out, "  - %s\n", e)
	}
	return nil
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

// Checkout enters offline mode for the rig given as argument, the
// configured default rig, or one entered at the prompt.
func (a *App) Checkout(ctx context.Context, args []string) error {
	rigID, err := a.rigID(args)
	if err != nil {
		return a.report(err)
	}

	req := services.CheckoutRequest{RigID: rigID}
	if a.user != nil {
		req.UserID = a.user.UserID
		req.Username = a.user.Username
	}

	fmt.Fprintf(a.out, "Checking out rig %d...\n", rigID)
	res, err := a.offline.EnableOfflineMode(ctx, req)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Checked out %d records (checkout %s)\n", res.RecordCount, res.CheckoutID)
	return nil
}

func (a *App) rigID(args []string) (int64, error) {
	raw := ""
	switch {
	case len(args) > 0:
		raw = args[0]
	case a.config != nil && a.config.DefaultRigID != 0:
		return a.config.DefaultRigID, nil
	default:
		v, err := getSimpleText(a.reader, "Enter rig id", a.out)
		if err != nil {
			return 0, err
		}
		raw = v
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rig id %q", raw)
	}
	return id, nil
}

// Checkin syncs all local changes and leaves offline mode.
func (a *App) Checkin(ctx context.Context) error {
	fmt.Fprintln(a.out, "Checking in...")
	res, err := a.offline.DisableOfflineMode(ctx)
	if res != nil {
		a.printCheckin(res)
	}
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Offline mode disabled")
	return nil
}

func (a *App) printCheckin(res *models.CheckinResult) {
	fmt.Fprintf(a.out, "Synced: %d, failed: %d, conflicts: %d\n", res.SyncedCount, res.FailedCount, len(res.Conflicts))
	for _, c := range res.Conflicts {
		fmt.Fprintf(a.out, "  conflict: %s %s %v\n", c.Entity, c.LocalID, c.ConflictFields)
	}
	for _, e := range a.offline.State().SyncErrors {
		fmt.Fprintf(a.out, "  - %s\n", e)
	}
}

// Discard leaves offline mode without syncing after the user confirms.
func (a *App) Discard(ctx context.Context) error {
	s := a.offline.State()
	if !s.IsOfflineMode {
		fmt.Fprintln(a.out, "Offline mode is not enabled")
		return nil
	}
	prompt := fmt.Sprintf("Discard %d unsynced changes and leave offline mode?", s.PendingSyncCount)
	if !Confirm(a.reader, prompt, a.out) {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.offline.ForceDisableOfflineMode(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Offline data discarded")
	return nil
}

// Sync drains the sync queue once.
func (a *App) Sync(ctx context.Context) error {
	res, err := a.offline.SyncNow(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Synced: %d, failed: %d, still pending: %d\n", res.SyncedCount, res.FailedCount, res.PendingCount)
	for _, e := range a.offline.State().SyncErrors {
		fmt.Fprintf(a.out, "  - %s\n", e)
	}
	return nil
}

// Queue prints queue counts and the operations that ran out of retries.
func (a *App) Queue(ctx context.Context) error {
	st, err := a.queue.Status(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Total %d: pending %d, syncing %d, success %d, failed %d, conflict %d\n",
		st.Total, st.Pending, st.Syncing, st.Success, st.Failed, st.Conflict)

	failed, err := a.queue.FailedOperations(ctx)
	if err != nil {
		return a.report(err)
	}
	for _, op := range failed {
		fmt.Fprintf(a.out, "  %s  %s  retries %d/%d  %s  %s\n",
			op.ID, op.Describe(), op.RetryCount, op.MaxRetries, op.UpdatedAt.Local().Format(time.DateTime), op.Error)
	}
	return nil
}

// Retry resets one failed operation by id and pushes it, or all failed
// operations with "retry all".
func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: retry <id|all>")
		return nil
	}
	if args[0] == "all" {
		n, err := a.queue.RetryAllFailed(ctx)
		if err != nil {
			return a.report(err)
		}
		fmt.Fprintf(a.out, "%d operations reset\n", n)
		return a.offline.RefreshPendingCount(ctx)
	}

	err := a.queue.Retry(ctx, args[0])
	_ = a.offline.RefreshPendingCount(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Operation synced")
	return nil
}

var errUsage = errors.New("missing argument")
