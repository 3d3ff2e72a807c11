package cli

import (
	"context"
	"fmt"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// List prints the checked-out DWRs, marking those with local changes.
func (a *App) List(ctx context.Context) error {
	list, err := a.editor.ListDWRs(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No records")
		return nil
	}
	for _, d := range list {
		fmt.Fprintf(a.out, "%s %s  %-10s %-6s subproject %d  %s\n",
			dirtyMark(d.Mutation), d.LocalID, d.Date, serverLabel(d.ServerID), d.SubprojectID, d.Status)
	}
	return nil
}

func dirtyMark(m models.Mutation) string {
	switch {
	case m.CreatedLocally:
		return "+"
	case m.HasLocalChanges:
		return "*"
	}
	return " "
}

func serverLabel(id *int64) string {
	if id == nil {
		return "new"
	}
	return fmt.Sprintf("#%d", *id)
}

// Show prints one DWR with its children.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: show <id>")
		return errUsage
	}
	d, err := a.editor.GetDWR(ctx, args[0])
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintf(a.out, "DWR %s (%s)\n", d.LocalID, serverLabel(d.ServerID))
	fmt.Fprintf(a.out, "  date:       %s\n", d.Date)
	fmt.Fprintf(a.out, "  status:     %s\n", d.Status)
	fmt.Fprintf(a.out, "  subproject: %d\n", d.SubprojectID)
	if d.TicketNumber != "" {
		fmt.Fprintf(a.out, "  ticket:     %s\n", d.TicketNumber)
	}
	if d.Notes != "" {
		fmt.Fprintf(a.out, "  notes:      %s\n", d.Notes)
	}

	for _, w := range d.WorkAssignments {
		fmt.Fprintf(a.out, "  %s work  %s %s %s\n", dirtyMark(w.Mutation), w.LocalID, w.FromTime, w.Description)
	}
	for _, tr := range d.TimeRecords {
		fmt.Fprintf(a.out, "  %s time  %s employee %d\n", dirtyMark(tr.Mutation), tr.LocalID, tr.EmployeeID)
	}
	if cr := d.ChargeRecord; cr != nil {
		fmt.Fprintf(a.out, "  %s charges %s total %.2f\n", dirtyMark(cr.Mutation), cr.LocalID, cr.TotalAmount)
		for _, kind := range models.ChargeKinds {
			for _, l := range cr.Lines(kind) {
				fmt.Fprintf(a.out, "    %s %s %s\n", dirtyMark(l.Mutation), kind, l.LocalID)
			}
		}
	}
	return nil
}

// Notes replaces a DWR's notes with text read from the prompt.
func (a *App) Notes(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: notes <id>")
		return errUsage
	}
	d, err := a.editor.GetDWR(ctx, args[0])
	if err != nil {
		return a.report(err)
	}
	notes, err := GetMultiline(a.reader, "Enter notes", a.out)
	if err != nil {
		return err
	}
	d.Notes = notes
	if err := a.editor.UpdateDWR(ctx, d); err != nil {
		return a.report(err)
	}
	_ = a.offline.RefreshPendingCount(ctx)
	fmt.Fprintln(a.out, "Saved")
	return nil
}

// Delete removes a DWR after the user confirms.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: delete <id>")
		return errUsage
	}
	if !Confirm(a.reader, fmt.Sprintf("Delete DWR %s?", args[0]), a.out) {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.editor.DeleteDWR(ctx, args[0]); err != nil {
		return a.report(err)
	}
	_ = a.offline.RefreshPendingCount(ctx)
	fmt.Fprintln(a.out, "Deleted")
	return nil
}
