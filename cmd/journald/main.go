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

// journald is a long-running host skeleton: it opens a project, serves a
// websocket monitor of its dirty/progress events, registers graceful
// shutdown so a SIGTERM still publishes a snapshot, and watches the project
// directory for a snapshot dropped in externally (e.g. by a sync tool)
// so it can pick up the newer state on its next open.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/Stazed/nonlib-xt/journal"
)

func main() {
	dir := flag.String("dir", ".", "project directory backed by a filesystem Backend")
	addr := flag.String("addr", ":8089", "address the monitor websocket listens on")
	maxJournalSize := flag.String("max-journal-size", "", "auto-compact once the journal passes this size (e.g. 64MiB); empty disables it")
	flag.Parse()

	runID := uuid.NewString()
	log.Printf("journald: starting run %s on %s", runID, *dir)

	backend, err := journal.NewFSBackend(*dir)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}

	ctx := journal.NewContext(backend)

	if *maxJournalSize != "" {
		if err := ctx.ApplySettings(journal.Settings{MaxJournalSize: *maxJournalSize}); err != nil {
			log.Printf("ApplySettings: %v (auto-compaction left disabled)", err)
		}
	}

	if err := ctx.Open(); err != nil {
		log.Fatalf("open: %v", err)
	}
	ctx.RegisterGracefulShutdown()

	var archiveSeq int
	ctx.EnableArchival(func() string {
		archiveSeq++
		return fmt.Sprintf("%s-%04d", runID, archiveSeq)
	})

	monitor := journal.NewMonitor(ctx)
	http.Handle("/monitor", monitor)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("fsnotify: %v", err)
	}
	defer watcher.Close()
	if err := watcher.Add(*dir); err != nil {
		log.Fatalf("watch %s: %v", *dir, err)
	}
	go watchProject(watcher)

	go func() {
		log.Printf("journald: serving monitor on %s/monitor", *addr)
		if err := http.ListenAndServe(*addr, nil); err != nil {
			log.Printf("monitor server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("journald: shutting down")
	if err := ctx.Close(); err != nil {
		log.Printf("close: %v", err)
	}
}

// watchProject logs externally-dropped snapshot/journal changes. A real
// host would debounce these and trigger a reload; this skeleton just
// surfaces them, the way a host first wires fsnotify before deciding what
// its own reload policy should be.
func watchProject(watcher *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Printf("journald: %s changed externally (%s)", ev.Name, ev.Op)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("journald: watch error: %v", err)
		}
	}
}
