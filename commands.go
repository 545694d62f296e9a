/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// CLI commands always run on the operator's machine, so the localhost
// backend fallback applies.
func openApp(cfg *Config) (*app, error) {
	return newApp(cfg, "localhost")
}

// openGated opens the app and checks the stored Session holds c.
func openGated(cfg *Config, c Capability) (*app, error) {
	a, err := openApp(cfg)
	if err != nil {
		return nil, err
	}

	if _, err := a.sessions.Require(c); err != nil {
		return nil, err
	}

	return a, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printSummary(w io.Writer, snap Snapshot) {
	fmt.Fprintf(w, "%d categories, %d decks.\n", len(snap.Categories), len(snap.Decks))
}

func newLoginCmd(cfg *Config) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with the shared staff or admin password.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cfg)
			if err != nil {
				return err
			}

			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			sess, err := a.sessions.Login(cmd.Context(), a.api, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", sess.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to log in with; read from stdin when omitted")

	return cmd
}

func newLogoutCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cfg)
			if err != nil {
				return err
			}

			if err := a.sessions.Logout(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			sess, ok := a.sessions.Current()
			if !ok {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}

			tier := CapPlay
			if sess.Role.AdminLike() {
				tier = CapManage
			}
			fmt.Fprintf(out, "Role: %s (%s)\n", sess.Role, tier)

			switch {
			case sess.Expires.IsZero():
			case sess.Expired(time.Now()):
				fmt.Fprintf(out, "Expired: %s\n", sess.Expires.Local().Format(time.RFC1123))
			default:
				fmt.Fprintf(out, "Expires: %s\n", sess.Expires.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func newDecksCmd(cfg *Config) *cobra.Command {
	var sortMode string

	cmd := &cobra.Command{
		Use:   "decks",
		Short: "List categories and their decks.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapPlay)
			if err != nil {
				return err
			}

			snap, err := a.catalog.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range snap.Categories {
				if err := a.organizer.SetSortMode(name, SortMode(sortMode)); err != nil {
					return err
				}

				decks := a.organizer.DecksByCategory(snap, name)
				fmt.Fprintf(out, "%s (%d)\n", name, len(decks))
				for _, d := range decks {
					fmt.Fprintf(out, "  %-24s %4d cards  [%s]\n", d.Name, d.CardCount, d.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sortMode, "sort", string(SortAlphaAsc), "deck order: alphaAsc, alphaDesc, cardAsc or cardDesc")

	return cmd
}

func newCategoryCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Create or delete categories.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a category.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			snap, err := a.catalog.CreateCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a category, moving its decks to Uncategorized.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			snap, err := a.catalog.DeleteCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	})

	return cmd
}

func newDeckCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Import, move or delete decks.",
	}

	var (
		opts       ImportOptions
		tabooWords int
	)

	importCmd := &cobra.Command{
		Use:   "import <url>",
		Short: "Import a deck from a CSV or Google Sheets URL.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			opts.URL = args[0]
			if cmd.Flags().Changed("taboo-words") {
				opts.TabooWordsPerCard = &tabooWords
			}

			snap, err := a.catalog.ImportDeck(cmd.Context(), opts)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	importCmd.Flags().StringVar(&opts.Name, "name", "", "deck name, defaults to the backend's choice")
	importCmd.Flags().StringVar(&opts.Category, "category", "", "category for the new deck")
	importCmd.Flags().IntVar(&tabooWords, "taboo-words", defaultTabooWords, "taboo words per card")

	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "move <id> <category>",
		Short: "Move a deck to another category.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			snap, err := a.catalog.MoveDeck(cmd.Context(), ID(args[0]), args[1])
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a deck.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			snap, err := a.catalog.DeleteDeck(cmd.Context(), ID(args[0]))
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch every sheet-backed deck from its source.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			snap, err := a.catalog.RefreshFromSource(cmd.Context())
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	})

	return cmd
}

func newWorkbookCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workbook",
		Short: "Manage spreadsheet workbooks.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <sheet-url>",
		Short: "Import every tab of a workbook as a deck.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			res, err := a.catalog.ImportWorkbook(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", res.Message, res.WorkbookID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List imported workbooks.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			list, err := a.catalog.ListWorkbooks(cmd.Context(), false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No workbooks.")
				return nil
			}
			for _, wb := range list {
				fmt.Fprintf(out, "%s  %s  (%d decks)\n", wb.ID, wb.Name, wb.DeckTotal())
				if u := wb.SheetURL(); u != "" {
					fmt.Fprintf(out, "    %s\n", u)
				}
				if wb.LastSynced != "" {
					fmt.Fprintf(out, "    last synced %s\n", wb.LastSynced)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reload <id>",
		Short: "Re-import every tab of a workbook.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			msg, err := a.catalog.ReloadWorkbook(cmd.Context(), ID(args[0]))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workbook.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			msg, err := a.catalog.DeleteWorkbook(cmd.Context(), ID(args[0]))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	})

	return cmd
}

func newPasswordCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Show or change the staff password.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current staff password.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			pw, err := a.passwords.Staff(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), pw)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [new-password]",
		Short: "Change the staff password; read from stdin when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "New staff password: ")
				if pw, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			msg, err := a.passwords.SetStaff(cmd.Context(), pw)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	})

	return cmd
}

func newAdminResetCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin-reset",
		Short: "Reset the admin password by email token.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "request",
		Short: "Email a reset token to the admin address.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapManage)
			if err != nil {
				return err
			}

			msg, err := a.passwords.RequestReset(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <token> <new-password>",
		Short: "Set a new admin password using an emailed token.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cfg)
			if err != nil {
				return err
			}

			msg, err := a.passwords.CompleteReset(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	})

	return cmd
}

func newPlayCmd(cfg *Config) *cobra.Command {
	var (
		decks  []string
		random int
		seed   uint64
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Deal cards interactively in the terminal.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openGated(cfg, CapPlay)
			if err != nil {
				return err
			}

			snap, err := a.catalog.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			var rng *rand.Rand
			if seed != 0 {
				rng = rand.New(rand.NewPCG(seed, seed))
			} else {
				rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			}

			var sel Selection
			switch {
			case len(decks) > 0:
				for _, id := range decks {
					if _, ok := snap.deck(ID(id)); !ok {
						return validationError(fmt.Sprintf("Deck %s not found.", id))
					}
					if !sel.Has(ID(id)) {
						sel.Toggle(ID(id))
					}
				}
			case random != 0:
				if err := sel.Randomize(rng, snap, random); err != nil {
					return err
				}
			default:
				sel.SelectAll(snap)
			}

			return playLoop(cmd.InOrStdin(), cmd.OutOrStdout(), newDealer(rng), snap, &sel)
		},
	}

	cmd.Flags().StringSliceVar(&decks, "decks", nil, "deck ids to play (default all)")
	cmd.Flags().IntVar(&random, "random", 0, "pick this many decks at random")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "shuffle seed, for repeatable runs")

	return cmd
}

const playHelp = "[p]lay [d]raw s[k]ip [r]eload [s]top [q]uit"

// playLoop drives a dealer from single-letter commands, printing the copy
// text after every transition.
func playLoop(in io.Reader, out io.Writer, d *Dealer, snap Snapshot, sel *Selection) error {
	fmt.Fprintf(out, "%d decks selected. %s\n", sel.Len(), playHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "p", "play":
			if err := d.BeginPlay(snap.Decks, sel.IDs()); err != nil {
				fmt.Fprintln(out, messageOf(err))
				continue
			}
		case "d", "draw":
			d.Draw()
		case "k", "skip":
			if !d.Skip() {
				fmt.Fprintln(out, "Nothing to skip to.")
			}
		case "r", "reload":
			if !d.Reload() {
				fmt.Fprintln(out, "Nothing to reload yet.")
				continue
			}
		case "s", "stop":
			d.Stop()
		case "q", "quit", "exit":
			return nil
		case "":
			continue
		default:
			fmt.Fprintln(out, playHelp)
			continue
		}

		fmt.Fprintln(out, dealerCopyText(d))
		if d.Playing() {
			fmt.Fprintf(out, "(%d of %d cards left)\n", d.Remaining(), d.PoolSize())
		}
	}
}
