package dotdav

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/dotdav/pkg/config"
	"github.com/arthur-debert/dotdav/pkg/daemon"
	"github.com/arthur-debert/dotdav/pkg/deploy"
	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/paths"
	"github.com/arthur-debert/dotdav/pkg/service"
	"github.com/arthur-debert/dotdav/pkg/store"
	"github.com/arthur-debert/dotdav/pkg/style"
	syncpkg "github.com/arthur-debert/dotdav/pkg/sync"
)

const timeRounding = 10 * time.Millisecond

func newInitCmd(opts *rootOptions) *cobra.Command {
	var remote, remotePath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the store root and configure the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(opts.root, 0755); err != nil {
				return errors.Wrap(err, errors.ErrDirCreate, "failed to create store root")
			}
			if err := store.New(opts.root).Init(); err != nil {
				return err
			}

			cfg, err := config.Load(opts.root)
			if err != nil {
				return err
			}
			if err := cfg.SetRemote(opts.root, remote, remotePath); err != nil {
				return err
			}

			fmt.Printf("Initialized dotdav in %s\n", style.Render(style.PathStyle, opts.root))
			if cfg.Remote != "" {
				fmt.Printf("Remote: %s\n", cfg.RemoteSpec())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "rclone remote name")
	cmd.Flags().StringVar(&remotePath, "path", "", "path on the remote")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Copy a file into the store and start managing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.root)
			if err != nil {
				return err
			}
			profile := cfg.Profile
			if profileOverride != "" {
				profile = profileOverride
			}

			result, err := deploy.New(opts.root).Add(paths.ExpandHome(args[0]), profile)
			if err != nil {
				return err
			}

			fmt.Printf("Added %s as %s (profile: %s)\n",
				style.Render(style.PathStyle, result.LocalPath), result.StoredName, result.Profile)
			fmt.Println("Run 'dotdav deploy' to create the symlink.")
			return nil
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Add the file under this profile instead of the active one")
	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	var profileOverride string

	cmd := &cobra.Command{
		Use:   "remove <path>",
		Short: "Stop managing a file and restore it in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.root)
			if err != nil {
				return err
			}
			profile := cfg.Profile
			if profileOverride != "" {
				profile = profileOverride
			}

			result, err := deploy.New(opts.root).Remove(paths.ExpandHome(args[0]), profile)
			if err != nil {
				return err
			}

			fmt.Printf("Restored %s (removed %s variant)\n",
				style.Render(style.PathStyle, result.LocalPath), result.Variant)
			if result.EntryDeleted {
				fmt.Printf("%s is no longer managed.\n", result.LogicalName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profileOverride, "profile", "", "Remove the variant of this profile instead of the active one")
	return cmd
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile [name]",
		Short: "Print or switch the active profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.root)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Printf("Current profile: %s\n", cfg.Profile)
				return nil
			}

			if err := cfg.SetProfile(opts.root, args[0]); err != nil {
				return err
			}
			fmt.Printf("Switched to profile: %s\n", args[0])
			fmt.Println("Run 'dotdav deploy' to relink files for this profile.")
			return nil
		},
	}
}

func newDeployCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Reconcile symlinks with the store for the active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.root)
			if err != nil {
				return err
			}

			report, err := deploy.New(opts.root).Deploy(cfg.Profile, force)
			if err != nil {
				return err
			}

			printReport(report)
			if report.HasProblems() {
				return fmt.Errorf("deploy finished with conflicts or failures")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files and foreign symlinks (destructive)")
	return cmd
}

func printReport(report *deploy.Report) {
	for _, entry := range report.Entries {
		switch entry.Outcome {
		case deploy.OutcomeCreated:
			fmt.Printf("%s %s\n", style.Render(style.SuccessStyle, "linked:"), entry.LogicalName)
		case deploy.OutcomeAlreadyCorrect:
			fmt.Printf("%s %s\n", style.Render(style.MutedStyle, "uptodate:"), entry.LogicalName)
		case deploy.OutcomeReplaced:
			fmt.Printf("%s %s\n", style.Render(style.WarningStyle, "replaced:"), entry.LogicalName)
		case deploy.OutcomeConflictSkipped:
			fmt.Printf("%s %s: %v\n", style.Render(style.WarningStyle, "conflict:"), entry.LogicalName, entry.Err)
		case deploy.OutcomeFailed:
			fmt.Printf("%s %s: %v\n", style.Render(style.ErrorStyle, "failed:"), entry.LogicalName, entry.Err)
		}
	}

	counts := report.Counts()
	fmt.Printf("%d linked, %d up to date, %d replaced, %d conflicts, %d failed\n",
		counts[deploy.OutcomeCreated], counts[deploy.OutcomeAlreadyCorrect],
		counts[deploy.OutcomeReplaced], counts[deploy.OutcomeConflictSkipped],
		counts[deploy.OutcomeFailed])
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync push|pull",
		Short: "Manually transfer the store to or from the remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.root)
			if err != nil {
				return err
			}
			coordinator := syncpkg.NewCoordinator(opts.root, cfg, nil)

			var result *syncpkg.Result
			switch args[0] {
			case "push":
				result, err = coordinator.Push(cmd.Context())
			case "pull":
				result, err = coordinator.Pull(cmd.Context())
			default:
				return fmt.Errorf("unknown sync action %q (want push or pull)", args[0])
			}
			if err != nil {
				return err
			}

			fmt.Printf("%s %s completed in %s\n",
				style.Render(style.SuccessStyle, "sync:"), result.Op,
				result.Finished.Sub(result.Started).Round(timeRounding))
			return nil
		},
	}
	return cmd
}

func newAutosyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "autosync",
		Short: "Run the autosync daemon in the foreground",
		Long: `Watches the repository store and pushes after a quiet period, pulls
from the remote on a fixed interval. Runs in the foreground so it can
be supervised by systemd (see 'dotdav service install').`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.root)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return daemon.New(opts.root, cfg, nil).Run(ctx)
		},
	}
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service install|uninstall",
		Short: "Manage the systemd user service for autosync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "install":
				return service.Install()
			case "uninstall":
				return service.Uninstall()
			default:
				return fmt.Errorf("unknown service action %q (want install or uninstall)", args[0])
			}
		},
	}
	return cmd
}
