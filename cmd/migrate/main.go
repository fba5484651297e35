package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/angelmondragon/microcommerce-backend/pkg/bootstrap"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
	"github.com/angelmondragon/microcommerce-backend/pkg/migrate"
)

type options struct {
	cmd, dir, name, version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|to|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "read migrations from this directory instead of the embedded set")
	flag.StringVar(&opts.name, "name", "", "description for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	source := migrate.Migrations()
	if opts.dir != "" {
		source = os.DirFS(opts.dir)
	}

	// filesystem-only commands run without config or a database
	if handled, err := offline(opts, source); handled {
		if err != nil {
			logger.New(logger.Options{ServiceName: "migrate"}).Error(context.Background(), "migrate."+opts.cmd+"_failed", err)
			os.Exit(1)
		}
		return
	}

	rt, err := bootstrap.Start(context.Background(), "migrate", bootstrap.NeedDB|bootstrap.SkipAutoMigrate)
	if err == nil {
		err = online(rt, opts, source)
	}
	os.Exit(rt.Finish(err))
}

func offline(opts options, source fs.FS) (bool, error) {
	switch opts.cmd {
	case "create":
		dir := opts.dir
		if dir == "" {
			dir = migrate.SourceDir
		}
		path, err := migrate.NewFile(dir, opts.name, time.Now())
		if err == nil {
			fmt.Println("created", path)
		}
		return true, err
	case "validate":
		err := migrate.Validate(source)
		if err == nil {
			fmt.Println("migrations ok")
		}
		return true, err
	}
	return false, nil
}

func online(rt *bootstrap.Runtime, opts options, source fs.FS) error {
	logg := rt.Logger
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": opts.cmd, "driver": rt.DB.Driver()})

	sqlDB, err := rt.DB.DB().DB()
	if err != nil {
		return err
	}
	migrator, err := migrate.NewMigrator(sqlDB, rt.DB.Driver(), source)
	if err != nil {
		return err
	}

	switch opts.cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrate.up_done")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.down_done")
	case "to":
		version, err := strconv.ParseInt(opts.version, 10, 64)
		if err != nil {
			return fmt.Errorf("parse -version: %w", err)
		}
		if err := migrator.To(ctx, version); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", version), "migrate.to_done")
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(statuses)
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}
	return nil
}

func printStatus(statuses []migrate.Status) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		state, at := "pending", "-"
		if st.Applied {
			state, at = "applied", st.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Version, state, at, st.File)
	}
	_ = tw.Flush()
}
