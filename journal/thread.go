/*******************************************************************************/
/* Copyright (C) 2008-2021 Jonathan Moore Liles                                */
/* Copyright (C) 2021- Stazed                                                  */
/*                                                                             */
/* This program is free software; you can redistribute it and/or modify it     */
/* under the terms of the GNU General Public License as published by the      */
/* Free Software Foundation; either version 2 of the License, or (at your     */
/* option) any later version.                                                 */
/*******************************************************************************/

// thread.go replaces Thread.C's pthread_key_create/pthread_getspecific
// "current thread identity" registry. The engine only needs to answer "am I
// on the thread named X" — e.g. so a host can assert journal mutations never
// happen on its real-time audio thread — without requiring every call site
// to thread a context.Context through the engine. github.com/jtolds/gls
// provides goroutine-local storage for exactly this job, the same tradeoff
// the original made with a process-global pthread key.
package journal

import "github.com/jtolds/gls"

var threadMgr = gls.NewContextManager()

const threadNameKey = "nonlib.threadName"

// RunAsThread runs fn with the goroutine tagged as the given thread name,
// the Go equivalent of Thread::set/Thread::clone registering the calling
// thread under a name before it starts doing work.
func RunAsThread(name string, fn func()) {
	threadMgr.SetValues(gls.Values{threadNameKey: name}, fn)
}

// CurrentThreadName returns the name RunAsThread tagged the calling
// goroutine with, or "" if it was never tagged (Thread::current()==nil).
func CurrentThreadName() string {
	if v, ok := threadMgr.GetValue(threadNameKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IsCurrentThread reports whether the calling goroutine was tagged with
// name, the equivalent of Thread::is(name).
func IsCurrentThread(name string) bool {
	return CurrentThreadName() == name
}
