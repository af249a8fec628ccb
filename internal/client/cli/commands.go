package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/flags"
	"github.com/dmitrijs2005/offlinekit/internal/client/security"
	"github.com/dmitrijs2005/offlinekit/internal/client/syncqueue"
)

// getSimpleText, getPassword and getMultiline are indirections used to
// facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getMultiline  = GetMultiline
)

func (a *App) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

// Login stores a pasted access token as the current credential.
func (a *App) Login(ctx context.Context) error {
	tok, err := getSimpleText(a.reader, "Paste access token", a.out)
	if err != nil {
		return err
	}
	if tok == "" {
		return errors.New("empty token")
	}
	claims, err := security.ParseClaims(tok)
	if err != nil {
		return err
	}
	if err := a.tokens.Save(ctx, tok); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (role %s)\n", claims.UserID, claims.Role)
	if !a.sec.ValidateOfflineAccess(ctx) {
		fmt.Fprintln(a.out, "Warning: this credential does not allow offline access")
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.tokens.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Sync(ctx context.Context, args []string) error {
	userID, err := a.userArg(ctx, args)
	if err != nil {
		return err
	}
	data, err := a.data.SyncUserData(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Synced %s (version %d)\n", data.ID, data.Version)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	userID, err := a.userArg(ctx, args)
	if err != nil {
		return err
	}
	data, err := a.data.GetOfflineUserData(ctx, userID)
	if err != nil {
		return err
	}
	if data == nil {
		fmt.Fprintf(a.out, "No cached data for %s\n", userID)
		return nil
	}
	return a.printJSON(data)
}

func (a *App) Users(ctx context.Context) error {
	all, err := a.data.GetAllOfflineUsers(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tVERSION\tLAST SYNC")
	for _, u := range all {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", u.ID, u.Email, u.Version, u.LastSyncAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *App) readPatch() (json.RawMessage, error) {
	text, err := getMultiline(a.reader, "Enter JSON patch", a.out)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(text)) {
		return nil, errors.New("patch is not valid JSON")
	}
	return json.RawMessage(text), nil
}

func (a *App) UpdateProfile(ctx context.Context) error {
	patch, err := a.readPatch()
	if err != nil {
		return err
	}
	data, err := a.data.UpdateProfileOffline(ctx, patch)
	if err != nil {
		return err
	}
	a.reportUpdate(data != nil)
	return nil
}

func (a *App) UpdateUser(ctx context.Context) error {
	patch, err := a.readPatch()
	if err != nil {
		return err
	}
	data, err := a.data.UpdateUserOffline(ctx, patch)
	if err != nil {
		return err
	}
	a.reportUpdate(data != nil)
	return nil
}

func (a *App) reportUpdate(cached bool) {
	if cached {
		fmt.Fprintln(a.out, "Update applied locally and queued")
		return
	}
	fmt.Fprintln(a.out, "Update queued (no cached copy to apply it to)")
}

func (a *App) Export(ctx context.Context, args []string) error {
	userID, err := a.userArg(ctx, args)
	if err != nil {
		return err
	}
	loc, err := a.data.ExportTo(ctx, userID, a.sink)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Exported to", loc)
	return nil
}

func (a *App) Queue(ctx context.Context) error {
	pending, err := a.queue.Pending(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tENDPOINT\tPRIORITY\tRETRIES\tLAST ERROR")
	for _, op := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			op.ID, op.Kind, op.Endpoint, op.Priority, op.RetryCount, op.MaxRetries, op.LastError)
	}
	return w.Flush()
}

func (a *App) DeadLetters(ctx context.Context) error {
	dead, err := a.queue.DeadLetters(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENDPOINT\tFAILED AT\tREASON")
	for _, d := range dead {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Operation.ID, d.Operation.Endpoint, d.FailedAt.Format(time.RFC3339), d.Reason)
	}
	return w.Flush()
}

// Drain replays the queue now. "drain high" restricts it to high priority.
func (a *App) Drain(ctx context.Context, args []string) error {
	if a.mode() != ModeOnline {
		fmt.Fprintln(a.out, "Offline: operations stay queued")
		return nil
	}
	if err := a.flags.Set(flags.KeyLastFlushAttempt, a.now()); err != nil {
		a.log.Warn(ctx, "failed to record flush attempt", "error", err.Error())
	}

	var (
		rep syncqueue.Report
		err error
	)
	if len(args) > 0 && args[0] == "high" {
		rep, err = a.queue.DrainHighPriorityOnly(ctx)
	} else {
		rep, err = a.queue.Drain(ctx)
	}
	if err != nil {
		return err
	}
	if rep.Skipped {
		fmt.Fprintln(a.out, "A drain is already running")
		return nil
	}
	fmt.Fprintf(a.out, "attempted=%d succeeded=%d failed=%d deferred=%d dead_lettered=%d\n",
		rep.Attempted, rep.Succeeded, rep.Failed, rep.Deferred, rep.DeadLettered)
	for _, e := range rep.Errors {
		fmt.Fprintln(a.out, "  ", e)
	}
	return nil
}

func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: retry <operation id>")
	}
	if err := a.queue.Retry(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Replayed", args[0])
	return nil
}

func (a *App) Requeue(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: requeue <operation id>")
	}
	if err := a.queue.Requeue(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Requeued", args[0])
	return nil
}

func (a *App) Metrics(ctx context.Context, args []string) error {
	userID, err := a.userArg(ctx, args)
	if err != nil {
		return err
	}
	m, err := a.data.Metrics(ctx, userID)
	if err != nil {
		return err
	}
	return a.printJSON(m)
}

// Purge drops the cached copy of a user after confirmation.
func (a *App) Purge(ctx context.Context, args []string) error {
	userID, err := a.userArg(ctx, args)
	if err != nil {
		return err
	}
	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete cached data of %s? (yes/no)", userID), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.data.PurgeUser(ctx, userID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Purged", userID)
	return nil
}

func (a *App) PurgeLogs(ctx context.Context) error {
	n, err := a.data.CleanupSecurityLogs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %d security log entries\n", n)
	return nil
}
