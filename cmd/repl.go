package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/goforge/internal/agent"
	"github.com/nextlevelbuilder/goforge/internal/session"
	"github.com/nextlevelbuilder/goforge/internal/tasks"
	"github.com/nextlevelbuilder/goforge/internal/tools"
	"github.com/nextlevelbuilder/goforge/internal/worktree"
)

const (
	dim   = "\x1b[2m"
	reset = "\x1b[0m"
)

var exitWords = map[string]bool{"exit": true, "quit": true, "q": true}

// repl reads prompts from stdin until EOF or an exit word. Ctrl-C cancels
// the in-flight run and returns to the prompt; a second idle Ctrl-C exits.
func (rt *runtime) repl(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "%sgoforge session %s (model %s) — /help for commands%s\n",
		dim, rt.sess.Key, rt.model, reset)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[line] {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			if quit := rt.slashCommand(ctx, line); quit {
				return nil
			}
			continue
		}

		runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		answer, err := rt.loop.Run(runCtx, line)
		stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%serror: %v%s\n", dim, err, reset)
			continue
		}
		fmt.Println(answer)
	}
}

// slashCommand handles one /command line. Returns true to exit the REPL.
func (rt *runtime) slashCommand(ctx context.Context, line string) bool {
	cmd, _, _ := strings.Cut(line, " ")
	switch cmd {
	case "/help":
		fmt.Fprintln(os.Stderr, dim+"/compact /tasks /team /inbox /sessions /board /worktrees /events — exit, quit, q to leave"+reset)

	case "/compact":
		if err := rt.loop.CompactNow(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%scompaction failed: %v%s\n", dim, err, reset)
		} else {
			fmt.Fprintln(os.Stderr, dim+"history compacted"+reset)
		}

	case "/tasks":
		list, err := rt.store.ListAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s%v%s\n", dim, err, reset)
			break
		}
		fmt.Println(tasks.RenderList(list))

	case "/team":
		fmt.Println(rt.team.Roster())

	case "/inbox":
		msgs, err := rt.bus.ReadInbox(tools.LeadName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s%v%s\n", dim, err, reset)
			break
		}
		if len(msgs) == 0 {
			fmt.Println("Inbox is empty.")
			break
		}
		for _, msg := range msgs {
			fmt.Printf("[%s from %s] %s\n", msg.Type, msg.From, msg.Content)
		}

	case "/board":
		list, err := rt.board.ListAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s%v%s\n", dim, err, reset)
			break
		}
		fmt.Println(tasks.RenderList(list))

	case "/worktrees":
		entries, err := rt.wt.ListAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s%v%s\n", dim, err, reset)
			break
		}
		fmt.Println(worktree.RenderList(entries))

	case "/events":
		events, err := rt.tracer.Tail(20)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s%v%s\n", dim, err, reset)
			break
		}
		for _, ev := range events {
			line, _ := json.Marshal(ev)
			fmt.Println(string(line))
		}

	case "/sessions":
		rt.switchSession(ctx)

	default:
		fmt.Fprintf(os.Stderr, "%sunknown command %s%s\n", dim, cmd, reset)
	}
	return false
}

// switchSession rebuilds the runtime on a different session key, so bus,
// team, and board state never leak across keys.
func (rt *runtime) switchSession(ctx context.Context) {
	keys, err := session.ListKeys(rt.cfg.Sessions.RootDir)
	if err != nil || len(keys) == 0 {
		fmt.Fprintln(os.Stderr, dim+"no sessions to switch to"+reset)
		return
	}

	var picked string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Switch to session").
			Options(huh.NewOptions(keys...)...).
			Value(&picked),
	))
	if err := form.Run(); err != nil || picked == "" || picked == rt.sess.Key {
		return
	}

	fresh, err := buildRuntime(ctx, rt.cfg, picked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sswitch failed: %v%s\n", dim, err, reset)
		return
	}
	rt.shutdown()
	*rt = *fresh
	fmt.Fprintf(os.Stderr, "%snow on session %s%s\n", dim, rt.sess.Key, reset)
}

// printEvent renders one loop event as a dim status line, previews
// truncated to display width.
func printEvent(ev agent.Event) {
	switch ev.Type {
	case "tool.call":
		fmt.Fprintf(os.Stderr, "%s→ %s %s%s\n", dim, ev.Tool, previewLine(ev.Content, 80), reset)
	case "tool.result":
		marker := "✓"
		if ev.IsError {
			marker = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s%s %s %s%s\n", dim, marker, ev.Tool, previewLine(ev.Content, 100), reset)
	}
}

func previewLine(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, width, "...")
}
