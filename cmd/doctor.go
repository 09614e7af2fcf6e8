package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/mcp"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/tools"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials, and external dependencies",
		Run: func(cmd *cobra.Command, args []string) {
			failed := 0
			check := func(name string, err error) {
				if err != nil {
					failed++
					fmt.Printf("FAIL  %s: %v\n", name, err)
					return
				}
				fmt.Printf("PASS  %s\n", name)
			}

			cfg, err := config.Load(resolveConfigPath())
			check("config", err)
			if cfg == nil {
				cfg = config.Default()
			}

			reg := providers.NewRegistry(cfg)
			if names := reg.Names(); len(names) == 0 {
				check("provider credentials", fmt.Errorf("none configured (set DEEPSEEK_API_KEY or ANTHROPIC_API_KEY)"))
			} else {
				check(fmt.Sprintf("provider credentials (%v)", names), nil)
			}

			_, gitErr := exec.LookPath("git")
			check("git available", gitErr)

			check("sessions root writable", writableDir(cfg.Sessions.RootDir))
			check("workspace accessible", writableDir(cfg.Agent.Workspace))

			if len(cfg.MCPServers) > 0 {
				mgr := mcp.NewManager(tools.NewRegistry(), cfg.MCPServers)
				mgr.Start(cmd.Context())
				for _, status := range mgr.Status() {
					if status.Connected {
						check(fmt.Sprintf("mcp server %s (%d tools)", status.Name, status.ToolCount), nil)
					} else {
						check("mcp server "+status.Name, fmt.Errorf("%s", status.Error))
					}
				}
				mgr.Stop()
			}

			if failed > 0 {
				fmt.Printf("\n%d check(s) failed\n", failed)
				os.Exit(1)
			}
		},
	}
}

// writableDir verifies dir exists (or can be created) and accepts writes.
func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".goforge-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}
