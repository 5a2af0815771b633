package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/backup"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/pgstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNoDatabase       = errors.New("no database configured, set DATABASE_DSN or -d")
)

func (a *App) setPassword(ctx context.Context, username string) error {
	if !a.core.Users.UserExists(ctx, username) {
		return users.ErrUserNotFound
	}
	pw, err := GetSecret("New password", a.out)
	if err != nil {
		return err
	}
	again, err := GetSecret("Repeat password", a.out)
	if err != nil {
		return err
	}
	if pw != again {
		return ErrPasswordMismatch
	}
	if err := a.core.Users.SetPassword(ctx, username, pw); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Password updated for %s\n", username)
	return nil
}

// setAPIKey stores the key encrypted. An empty answer clears it.
func (a *App) setAPIKey(ctx context.Context, username string) error {
	if !a.core.Users.UserExists(ctx, username) {
		return users.ErrUserNotFound
	}
	key, err := GetSecret("AssemblyAI API key (empty to clear)", a.out)
	if err != nil {
		return err
	}
	if err := a.core.Users.SetAPIKey(ctx, username, key); err != nil {
		return err
	}
	if key == "" {
		fmt.Fprintf(a.out, "API key cleared for %s\n", username)
	} else {
		fmt.Fprintf(a.out, "API key updated for %s\n", username)
	}
	return nil
}

func (a *App) migrate(ctx context.Context) error {
	records, err := a.core.Users.Migrate(ctx)
	if err != nil {
		return err
	}
	passwords, err := a.core.Users.MigrateLegacyPasswords(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Migrated %d records, %d legacy passwords\n", records, passwords)
	return nil
}

func (a *App) sessions(ctx context.Context) error {
	active := a.core.Sessions.Active(ctx)
	if len(active) == 0 {
		fmt.Fprintln(a.out, "No active sessions")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tSESSION\tCREATED\tLAST ACTIVITY\tIP")
	for _, s := range active {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Username, s.SessionID,
			timex.Format(s.CreatedAt.Time), timex.Format(s.LastActivity.Time), s.IPAddress)
	}
	return tw.Flush()
}

func (a *App) endSession(ctx context.Context, username string) error {
	if err := a.core.Users.InvalidateUserSession(ctx, username, ""); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Session ended for %s\n", username)
	return nil
}

func (a *App) resetUsage(ctx context.Context) error {
	msg, err := a.core.Quotas.ForceDailyReset(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) health(ctx context.Context) error {
	b, err := json.MarshalIndent(a.core.Quotas.Health(ctx), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

func (a *App) backup(ctx context.Context) error {
	cfg := a.core.Config
	if cfg.S3Bucket == "" {
		return backup.ErrNoBucket
	}
	client, err := newPutter(ctx, backup.Config{
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3RootUser,
		SecretKey:    cfg.S3RootPassword,
		BaseEndpoint: cfg.S3BaseEndpoint,
		Bucket:       cfg.S3Bucket,
	})
	if err != nil {
		return err
	}

	res, err := backup.New(client, cfg.S3Bucket, a.core.Documents, a.logger).Snapshot(ctx, jsonstore.AllDocuments)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %d documents to s3://%s/%s\n", len(res.Keys), cfg.S3Bucket, res.Prefix)
	return nil
}

func (a *App) pgImport(ctx context.Context) error {
	if a.core.DB() == nil {
		return ErrNoDatabase
	}
	n, err := pgstore.Import(ctx, a.core.Documents, a.core.Files, jsonstore.AllDocuments)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d documents\n", n)
	return nil
}

func (a *App) lock(ctx context.Context, holder string) error {
	if err := a.core.Gate.Acquire(ctx, holder); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Maintenance lock acquired, the store is read-only")
	return nil
}

func (a *App) unlock(ctx context.Context) error {
	if err := a.core.Gate.Release(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Maintenance lock released")
	return nil
}
