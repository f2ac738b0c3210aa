/*******************************************************************************/
/* Copyright (C) 2008-2021 Jonathan Moore Liles                                */
/* Copyright (C) 2021- Stazed                                                  */
/*                                                                             */
/*                                                                             */
/* This program is free software; you can redistribute it and/or modify it     */
/* under the terms of the GNU General Public License as published by the      */
/* Free Software Foundation; either version 2 of the License, or (at your      */
/* option) any later version.                                                 */
/*                                                                             */
/* This program is distributed in the hope that it will be useful, but WITHOUT */
/* ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or       */
/* FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for   */
/* more details.                                                               */
/*                                                                             */
/* You should have received a copy of the GNU General Public License along     */
/* with This program; see the file COPYING.  If not,write to the Free Software */
/* Foundation, Inc., 59 Temple Place - Suite 330, Boston, MA 02111-1307, USA.  */
/*******************************************************************************/

// journalsh is an interactive shell over a journal.Context, for inspecting
// and poking at a project directory without a host application: open a
// project, create/set/destroy/undo/compact/snapshot "note" objects by hand,
// and watch dirty events as they happen.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/Stazed/nonlib-xt/journal"
)

const (
	newprompt    = "\033[32mjournal>\033[0m "
	resultprompt = "\033[31m=\033[0m "
)

// note is the one journaled class this shell knows how to create: a single
// undoable "text" field, enough to exercise every verb the shell exposes.
type note struct {
	journal.Base
	text string
}

func (n *note) ClassName() string { return "Note" }
func (n *note) Get(e *journal.Entry) { e.AddString("text", n.text) }
func (n *note) Set(e *journal.Entry) {
	if v, ok := e.String("text"); ok {
		n.text = v
	}
}

func noteFactory(ctx *journal.Context, e *journal.Entry, id uint32) journal.Loggable {
	n := &note{}
	n.Base = ctx.NewInstance(n)
	ctx.UpdateID(n, id)
	n.Set(e)
	return n
}

func (n *note) setText(text string) {
	lg := journal.NewLogger(n)
	defer lg.Close()
	n.text = text
}

func (n *note) destroy() {
	n.Base.Destroy(n)
}

var (
	registryMu   sync.Mutex
	createdOrder []uint32
)

func newNote(ctx *journal.Context, text string) *note {
	n := &note{}
	n.Base = ctx.NewInstance(n)
	n.text = text
	ctx.LogCreate(n)

	registryMu.Lock()
	createdOrder = append(createdOrder, n.ID())
	registryMu.Unlock()

	return n
}

func main() {
	dir := flag.String("dir", ".", "project directory backed by a filesystem Backend")
	flag.Parse()

	backend, err := journal.NewFSBackend(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "backend:", err)
		os.Exit(1)
	}

	ctx := journal.NewContext(backend)
	ctx.RegisterCreate("Note", noteFactory)

	ctx.OnDirty(func(dirty bool) {
		fmt.Fprintf(os.Stderr, "[dirty=%v]\n", dirty)
	})

	if err := ctx.Open(); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer ctx.Close()

	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".journalsh-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	fmt.Println("journalsh: verbs are create, set, destroy, find, undo, compact, snapshot, dump, quit")

	for {
		line, rerr := l.Readline()
		if rerr == readline.ErrInterrupt {
			continue
		} else if rerr == io.EOF {
			break
		} else if rerr != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("error:", r)
				}
			}()
			dispatch(ctx, line)
		}()
	}
}

func dispatch(ctx *journal.Context, line string) {
	fields := strings.Fields(line)
	verb := fields[0]
	args := fields[1:]

	switch verb {
	case "quit", "exit":
		os.Exit(0)

	case "create":
		if len(args) < 1 {
			fmt.Println("usage: create <note text...>")
			return
		}
		n := newNote(ctx, strings.Join(args, " "))
		fmt.Printf("%s0x%x\n", resultprompt, n.ID())

	case "set":
		if len(args) < 2 {
			fmt.Println("usage: set <id-hex> <note text...>")
			return
		}
		id := parseID(args[0])
		l := ctx.Find(id)
		if l == nil {
			fmt.Println("no such object")
			return
		}
		l.(*note).setText(strings.Join(args[1:], " "))

	case "destroy":
		if len(args) < 1 {
			fmt.Println("usage: destroy <id-hex>")
			return
		}
		id := parseID(args[0])
		l := ctx.Find(id)
		if l == nil {
			fmt.Println("no such object")
			return
		}
		l.(*note).destroy()

	case "find":
		if len(args) < 1 {
			fmt.Println("usage: find <id-hex>")
			return
		}
		id := parseID(args[0])
		l := ctx.Find(id)
		if l == nil {
			fmt.Println("nil")
			return
		}
		fmt.Printf("%s%s 0x%x %q\n", resultprompt, l.ClassName(), l.ID(), l.(*note).text)

	case "undo":
		if err := ctx.Undo(); err != nil {
			fmt.Println("undo:", err)
		}

	case "compact":
		if err := ctx.Compact(); err != nil {
			fmt.Println("compact:", err)
		}

	case "snapshot":
		if err := ctx.Snapshot("snapshot"); err != nil {
			fmt.Println("snapshot:", err)
		}

	case "dump":
		dump(ctx)

	default:
		fmt.Println("unknown verb:", verb)
	}
}

func dump(ctx *journal.Context) {
	// there is no exported walk-all-live-objects call on Context, so this
	// shell keeps its own registry of everything it has created in this
	// session and filters it through Find at dump time.
	registryMu.Lock()
	order := append([]uint32(nil), createdOrder...)
	registryMu.Unlock()

	for _, id := range order {
		l := ctx.Find(id)
		if l == nil {
			continue
		}
		fmt.Printf("%s 0x%x %q\n", l.ClassName(), l.ID(), l.(*note).text)
	}
}

func parseID(tok string) uint32 {
	tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
	var id uint32
	fmt.Sscanf(tok, "%x", &id)
	return id
}
