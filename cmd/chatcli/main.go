package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"research-chat-be/pkg/chatclient"
	"research-chat-be/pkg/sidebar"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

const help = `Commands:
  /new                          start a new conversation
  /list                         list conversations
  /open <id>                    switch conversation
  /rename <title>               rename the current conversation
  /delete <id>                  delete a conversation
  /ctx                          show active contexts
  /ctx add <type> <id>          add a context (document|project|knowledgeBase)
  /ctx rm <id>                  remove a context
  /search <query>               search contexts
  /bind <report|project|knowledgeBase> <id> <name>
  /unbind                       release the bound entity
  /presets                      list presets
  /apply <presetId> <env> [route]
  /watch                        follow preset changes
  /quit
Anything else is sent as a message.`

// streamPrinter prints only the new part of the assistant reply on each update.
type streamPrinter struct {
	mu      sync.Mutex
	printed map[string]int
}

func (p *streamPrinter) onUpdate(v sidebar.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range v.Messages {
		if !strings.HasPrefix(m.ID, sidebar.StreamingPrefix) {
			continue
		}
		n := p.printed[m.ID]
		if len(m.Content) > n {
			fmt.Print(m.Content[n:])
			p.printed[m.ID] = len(m.Content)
		}
	}
}

func main() {
	home, _ := os.UserHomeDir()
	baseURL := flag.String("url", "http://localhost:3000/api", "API base URL")
	token := flag.String("token", os.Getenv("CHAT_TOKEN"), "JWT bearer token")
	statePath := flag.String("state", filepath.Join(home, ".research-chat", "state.json"), "sidebar state file")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := chatclient.New(*baseURL, chatclient.WithToken(*token), chatclient.WithLogger(logger))
	adapter := sidebar.NewFileAdapter(*statePath)
	store := sidebar.NewStore(adapter, logger)
	printer := &streamPrinter{printed: map[string]int{}}
	sb := sidebar.New(client, store, sidebar.Options{
		Logger:   logger,
		Toast:    func(msg string) { color.Red("\n✖ %s", msg) },
		OnUpdate: printer.onUpdate,
	})

	var binder *sidebar.EntityBinder

	color.Cyan("research-chat (%s)", *baseURL)
	if id := store.CurrentConversationID(); id != "" {
		if err := sb.SwitchConversation(ctx, id); err != nil {
			color.Yellow("could not restore conversation %s: %v", id, err)
		} else {
			printHistory(sb.View())
		}
	}
	color.White(help)

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.GreenString("> "))
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			color.Blue("assistant:")
			if err := sb.Send(ctx, line); err == nil {
				fmt.Println()
			}
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit":
			return
		case "/new":
			sb.NewConversation()
			color.Green("new conversation")
		case "/list":
			convs, err := client.ListConversations(ctx)
			if err != nil {
				color.Red("Failed: %v", err)
				continue
			}
			for _, c := range convs {
				title := "New conversation"
				if c.Title != nil {
					title = *c.Title
				}
				fmt.Printf("%s  %-40s %d msgs\n", c.ID, title, c.MessageCount)
			}
		case "/open":
			if len(fields) < 2 {
				color.Yellow("usage: /open <id>")
				continue
			}
			if err := sb.SwitchConversation(ctx, fields[1]); err != nil {
				color.Red("Failed: %v", err)
				continue
			}
			printHistory(sb.View())
		case "/rename":
			id := store.CurrentConversationID()
			if id == "" || len(fields) < 2 {
				color.Yellow("usage: /rename <title> (needs an open conversation)")
				continue
			}
			if _, err := sb.RenameConversation(ctx, id, strings.TrimPrefix(line, "/rename ")); err == nil {
				color.Green("renamed")
			}
		case "/delete":
			if len(fields) < 2 {
				color.Yellow("usage: /delete <id>")
				continue
			}
			if err := sb.DeleteConversation(ctx, fields[1]); err == nil {
				color.Green("deleted")
			}
		case "/ctx":
			runContextCommand(ctx, sb, fields[1:])
		case "/search":
			res, err := client.SearchContexts(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/search")), nil, 1, 20)
			if err != nil {
				color.Red("Failed: %v", err)
				continue
			}
			for _, it := range res.Items {
				fmt.Printf("%-14s %s  %s\n", it.Type, it.ID, it.Title)
			}
			if res.HasMore {
				color.White("(%d total)", res.Total)
			}
		case "/bind":
			if len(fields) < 4 {
				color.Yellow("usage: /bind <kind> <id> <name>")
				continue
			}
			if binder != nil {
				binder.Unmount(ctx)
			}
			binder = sidebar.NewEntityBinder(sidebar.EntityKind(fields[1]), store, sb.Syncer(), logger)
			if err := binder.Mount(ctx, sidebar.EntityRef{ID: fields[2], Name: strings.Join(fields[3:], " ")}); err != nil {
				color.Yellow("bound locally only: %v", err)
			}
			printContexts(store.Snapshot())
		case "/unbind":
			if binder != nil {
				binder.Unmount(ctx)
				binder = nil
			}
			printContexts(store.Snapshot())
		case "/presets":
			presets, err := client.ListPresets(ctx)
			if err != nil {
				color.Red("Failed: %v", err)
				continue
			}
			for _, p := range presets {
				star := " "
				if p.IsFavorite {
					star = "★"
				}
				fmt.Printf("%s %s  %-24s %s %s\n", star, p.ID, p.Name, p.PrimaryColor, p.Theme)
			}
		case "/apply":
			runApply(ctx, client, adapter, in, fields[1:])
		case "/watch":
			feed := chatclient.NewPresetFeed(client, logger, func(presets []chatclient.Preset) {
				color.Magenta("\npresets changed: %d total", len(presets))
			})
			go func() {
				if err := feed.Subscribe(ctx, client); err != nil && ctx.Err() == nil {
					color.Red("\npreset feed stopped: %v", err)
				}
			}()
			color.Green("watching preset changes")
		default:
			color.White(help)
		}
	}
}

func runContextCommand(ctx context.Context, sb *sidebar.Sidebar, args []string) {
	store := sb.Store()
	if len(args) == 0 {
		printContexts(store.Snapshot())
		return
	}

	id := store.CurrentConversationID()
	switch {
	case args[0] == "add" && len(args) == 3:
		item := sidebar.ContextItem{ID: args[2], Type: args[1], Icon: sidebar.IconFor(args[1]), Title: args[2]}
		if id == "" {
			// Staged until the first message creates the conversation.
			store.AddContext(item)
		} else if err := sb.Syncer().Add(ctx, id, item); err != nil {
			color.Red("Failed: %v", err)
			return
		}
	case args[0] == "rm" && len(args) == 2:
		if id == "" {
			store.RemoveContext(args[1], "")
		} else if err := sb.Syncer().Remove(ctx, id, args[1]); err != nil {
			color.Red("Failed: %v", err)
			return
		}
	default:
		color.Yellow("usage: /ctx [add <type> <id> | rm <id>]")
		return
	}
	printContexts(store.Snapshot())
}

func runApply(ctx context.Context, client *chatclient.Client, store chatclient.KeyValueStore, in *bufio.Scanner, args []string) {
	if len(args) < 2 {
		color.Yellow("usage: /apply <presetId> <env> [route]")
		return
	}
	route := chatclient.ActiveRoute(store)
	if len(args) > 2 {
		route = args[2]
	}

	confirm := chatclient.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		color.Yellow("%s [y/N] ", prompt)
		if !in.Scan() {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(in.Text()))
		return answer == "y" || answer == "yes", nil
	})

	settings, err := client.ApplyPreset(ctx, chatclient.ApplyPresetRequest{
		PresetID:    args[0],
		Environment: args[1],
		Route:       route,
	}, confirm)
	if err != nil {
		color.Red("Failed: %v", err)
		return
	}
	if err := chatclient.SetActiveRoute(store, settings.Route); err != nil {
		color.Yellow("could not remember route: %v", err)
	}
	color.Green("applied to %s %s", settings.Environment, settings.Route)
}

func printHistory(v sidebar.View) {
	for _, m := range v.Messages {
		if m.Role == chatclient.RoleUser {
			color.Green("you: %s", m.Content)
		} else {
			color.Blue("assistant: %s", m.Content)
		}
	}
}

func printContexts(st sidebar.State) {
	if len(st.ActiveContexts) == 0 {
		color.White("no active contexts")
		return
	}
	for _, c := range st.ActiveContexts {
		fmt.Printf("[%s] %-14s %s\n", c.Icon, c.Type, c.Title)
	}
}
