package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newEnvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "env [shell]",
		Short: "Print shell statements that export the installed toolchains",
		Long: `Print the environment recorded by 'llvmgr install' as statements for
shell (sh, bash, zsh, fish, powershell). The shell defaults to the basename
of $SHELL, then sh.`,
		Example: "  eval \"$(llvmgr env)\"\n  llvmgr env fish | source",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := shellName(os.Getenv("SHELL"))
			if len(args) == 1 {
				shell = args[0]
			}

			s, err := a.cache.ReadShell()
			if err != nil {
				return err
			}
			lines, err := s.Exports(shell)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				a.status("No toolchains installed; run 'llvmgr install'")
				return nil
			}
			fmt.Fprintln(a.stdout, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func shellName(path string) string {
	if path == "" {
		return "sh"
	}
	return strings.TrimSuffix(filepath.Base(path), ".exe")
}
