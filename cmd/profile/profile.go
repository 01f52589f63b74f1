// Package profile holds the `chrome profile` commands.
package profile

import (
	"context"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"groucho/internal/chrome"
	"groucho/internal/securebackup"
	"groucho/internal/store"
	"groucho/internal/ui"
)

// Deps connects the commands to the rest of the CLI.
type Deps struct {
	// Open wires a chrome manager for one command; release undoes it.
	Open     func(c *cobra.Command) (m *chrome.Manager, release func(), err error)
	Confirm  func(label string) bool
	Password func(label string) (string, error)
}

// PromptConfirm asks a yes/no question.
func PromptConfirm(label string) bool {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}

// PromptPassword reads a masked password.
func PromptPassword(label string) (string, error) {
	prompt := promptui.Prompt{Label: label, Mask: '*'}
	return prompt.Run()
}

func (d Deps) run(c *cobra.Command, fn func(ctx context.Context, m *chrome.Manager) error) error {
	m, release, err := d.Open(c)
	if err != nil {
		return err
	}
	defer release()
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, m)
}

func (d Deps) password(label string) ([]byte, error) {
	pw, err := d.Password(label)
	if err != nil {
		return nil, err
	}
	if pw == "" {
		return nil, errors.New("password cannot be empty")
	}
	return []byte(pw), nil
}

// NewProfileCmd returns the `profile` command group.
func NewProfileCmd(d Deps) *cobra.Command {
	if d.Confirm == nil {
		d.Confirm = PromptConfirm
	}
	if d.Password == nil {
		d.Password = PromptPassword
	}
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage Chrome profiles",
	}
	cmd.AddCommand(
		newCreateCmd(d),
		newDeleteCmd(d),
		newResetCmd(d),
		newListCmd(d),
		newBackupCmd(d),
		newBackupsCmd(d),
		newRestoreCmd(d),
	)
	return cmd
}

func newCreateCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return d.run(c, func(_ context.Context, m *chrome.Manager) error {
				dir, err := m.CreateProfile(args[0])
				if err != nil {
					return err
				}
				ui.Default.Success("Profile Created", fmt.Sprintf("'%s' at %s", args[0], dir))
				return nil
			})
		},
	}
}

func newDeleteCmd(d Deps) *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			name := args[0]
			if !force && !d.Confirm(fmt.Sprintf("Delete profile '%s'", name)) {
				ui.Default.Println("Cancelled")
				return nil
			}
			return d.run(c, func(_ context.Context, m *chrome.Manager) error {
				if err := m.DeleteProfile(name); err != nil {
					return err
				}
				ui.Default.Success("Profile Deleted", fmt.Sprintf("'%s' removed", name))
				return nil
			})
		},
	}
	c.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation")
	return c
}

func newResetCmd(d Deps) *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "reset [NAME]",
		Short: "Empty a profile, stopping Chrome first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			name := chrome.DefaultProfile
			if len(args) == 1 {
				name = args[0]
			}
			if !force && !d.Confirm(fmt.Sprintf("Reset profile '%s'", name)) {
				ui.Default.Println("Cancelled")
				return nil
			}
			return d.run(c, func(ctx context.Context, m *chrome.Manager) error {
				created, err := m.ResetProfile(ctx, name)
				if err != nil {
					return err
				}
				if created {
					ui.Default.Info("Profile Created", fmt.Sprintf("'%s' did not exist and was created", name))
					return nil
				}
				ui.Default.Success("Profile Reset", fmt.Sprintf("'%s' is empty again", name))
				return nil
			})
		},
	}
	c.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation")
	return c
}

func newListCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return d.run(c, func(_ context.Context, m *chrome.Manager) error {
				profiles, err := m.ListProfiles()
				if err != nil {
					return err
				}
				Render(c.OutOrStdout(), profiles)
				return nil
			})
		},
	}
}

// Render writes profiles as a table.
func Render(w io.Writer, profiles []chrome.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles found.")
		return
	}
	tbl := table.New("Name", "Path", "Size", "Created").WithWriter(w)
	for _, p := range profiles {
		tbl.AddRow(p.Name, p.Path, ui.FormatBytes(p.Size), p.Created.Local().Format("2006-01-02 15:04"))
	}
	tbl.Print()
	fmt.Fprintf(w, "\nTotal profiles: %d\n", len(profiles))
}

func newBackupCmd(d Deps) *cobra.Command {
	var output string
	var encrypt bool
	c := &cobra.Command{
		Use:   "backup NAME",
		Short: "Archive a profile",
		Example: `  groucho chrome profile backup default
  groucho chrome profile backup qa --output /tmp/qa.tar.gz.enc --encrypt`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var pw []byte
			if encrypt {
				var err error
				if pw, err = d.password("Set password"); err != nil {
					return err
				}
			}
			return d.run(c, func(_ context.Context, m *chrome.Manager) error {
				b, err := m.BackupProfile(args[0], output, pw)
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("%s\nsize %s, xxhash %s", b.Path, ui.FormatBytes(b.Size), b.Hash)
				if b.Encrypted {
					msg += "\nencrypted"
				}
				ui.Default.Success("Backup Created", msg)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "backup file (default: timestamped file in the profiles directory)")
	c.Flags().BoolVar(&encrypt, "encrypt", false, "seal the archive with a password")
	return c
}

func newBackupsCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "backups [NAME]",
		Short: "List catalogued backups",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return d.run(c, func(_ context.Context, m *chrome.Manager) error {
				recs, err := m.Backups(name)
				if err != nil {
					return err
				}
				renderBackups(c.OutOrStdout(), recs)
				return nil
			})
		},
	}
}

func renderBackups(w io.Writer, recs []store.ProfileBackup) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No backups found.")
		return
	}
	tbl := table.New("Profile", "Path", "Size", "Encrypted", "Created").WithWriter(w)
	for _, r := range recs {
		encrypted := "No"
		if r.Encrypted {
			encrypted = "Yes"
		}
		tbl.AddRow(r.Profile, r.Path, ui.FormatBytes(r.Size), encrypted, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	tbl.Print()
}

func newRestoreCmd(d Deps) *cobra.Command {
	var name string
	c := &cobra.Command{
		Use:   "restore BACKUP",
		Short: "Replace a profile with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := args[0]
			var pw []byte
			if securebackup.IsSealed(path) {
				var err error
				if pw, err = d.password("Backup password"); err != nil {
					return err
				}
			}
			return d.run(c, func(ctx context.Context, m *chrome.Manager) error {
				restored, err := m.RestoreProfile(ctx, path, name, pw)
				if err != nil {
					return err
				}
				ui.Default.Success("Profile Restored", fmt.Sprintf("'%s' restored from %s", restored, path))
				return nil
			})
		},
	}
	c.Flags().StringVarP(&name, "name", "n", "", "profile to restore into (default: taken from the file name)")
	return c
}
