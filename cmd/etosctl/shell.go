package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	prompt "github.com/c-bata/go-prompt"
	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/sales"
)

// shell is the interactive mode. Each command runs in the background in a
// slot named after the command, so entering a command again before the
// previous one has finished cancels the previous one.
type shell struct {
	ctx context.Context
	eng *sales.Service
	out *printer

	wg  sync.WaitGroup
	seq int

	storesOnce sync.Once
	stores     []prompt.Suggest
}

func runShell(ctx context.Context, eng *sales.Service, out *printer) int {
	sh := &shell{ctx: ctx, eng: eng, out: out}

	if _, err := eng.Reference(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: reference data: %v\n", err)
	}

	fmt.Printf("etosctl %s shell. Type help for commands, exit to quit.\n", Version)
	p := prompt.New(sh.execute, sh.complete,
		prompt.OptionPrefix("etos> "),
		prompt.OptionTitle("etosctl"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && isExit(in)
		}),
	)
	p.Run()

	sh.wg.Wait()
	return 0
}

func isExit(in string) bool {
	switch strings.TrimSpace(in) {
	case "exit", "quit":
		return true
	}
	return false
}

func (sh *shell) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 || isExit(line) {
		return
	}

	switch fields[0] {
	case "help":
		for _, c := range commands {
			fmt.Printf("  %-40s %s\n", c.usage(), c.help)
		}
		fmt.Printf("  %-40s %s\n", "reload", "reload store mapping and article list")
		fmt.Printf("  %-40s %s\n", "exit", "leave the shell")
		return
	case "reload":
		sh.eng.Reload()
		sh.storesOnce = sync.Once{}
		return
	}

	c, ok := lookupCommand(fields[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q, type help\n", fields[0])
		return
	}
	args, err := parseArgs(c.args, fields[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}

	sh.seq++
	id := sh.seq
	view := sh.eng.Query().InSlot(c.name)

	sh.wg.Add(1)
	go func() {
		defer sh.wg.Done()

		err := c.run(sh.ctx, view, sh.out, args)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrSuperseded):
			fmt.Fprintf(os.Stderr, "[%d] %s superseded\n", id, c.name)
		default:
			fmt.Fprintf(os.Stderr, "[%d] %s: %s: %v\n", id, c.name, errors.CodeName(errors.ErrorToCode(err)), err)
		}
	}()
}

func (sh *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	words := strings.Fields(before)
	typing := !strings.HasSuffix(before, " ")

	if len(words) == 0 || (len(words) == 1 && typing) {
		return prompt.FilterHasPrefix(commandSuggestions(), d.GetWordBeforeCursor(), true)
	}

	c, ok := lookupCommand(words[0])
	if !ok {
		return nil
	}
	arg := len(words) - 1
	if typing {
		arg--
	}
	if arg < 0 || arg >= len(c.args) || c.args[arg] != "store" {
		return nil
	}
	return prompt.FilterHasPrefix(sh.storeSuggestions(), d.GetWordBeforeCursor(), false)
}

func commandSuggestions() []prompt.Suggest {
	s := make([]prompt.Suggest, 0, len(commands)+3)
	for _, c := range commands {
		s = append(s, prompt.Suggest{Text: c.name, Description: c.help})
	}
	return append(s,
		prompt.Suggest{Text: "reload", Description: "reload reference data"},
		prompt.Suggest{Text: "help", Description: "list commands"},
		prompt.Suggest{Text: "exit", Description: "leave the shell"},
	)
}

// storeSuggestions loads the store universe once for completion. Errors
// leave the list empty; the query itself reports them.
func (sh *shell) storeSuggestions() []prompt.Suggest {
	sh.storesOnce.Do(func() {
		ids, err := sh.eng.Query().ListStores(sh.ctx)
		if err != nil {
			return
		}
		sh.stores = make([]prompt.Suggest, len(ids))
		for i, id := range ids {
			sh.stores[i] = prompt.Suggest{Text: itoa(id)}
		}
	})
	return sh.stores
}
