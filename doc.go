// Package ioratelimiter implements a multi-priority I/O rate limiter: a
// token bucket per priority (High, Medium, Low) whose lower budgets are
// derived, on a slow cadence, from the unused residual of higher ones, plus
// a Stop sentinel that blocks admission outright.
//
// Reference: TiKV components/file_system/src/rate_limiter.rs
// (IORateLimiter, PriorityBasedIORateLimiter)
//
// # Priority and budget model
//
// Callers never size a token bucket directly. They set one total
// bytes-per-second ceiling via SetIORateLimit; the limiter's background
// refill loop splits that ceiling into High/Medium/Low budgets by watching
// how much of each higher priority's budget actually gets used. A
// quiescent High donates its unused budget to Medium; a quiescent Medium
// donates to Low. See internal/priolimiter for the algorithm.
//
// # Usage
//
//	rl := ioratelimiter.New(ioratelimiter.DefaultOptions())
//	defer rl.Close()
//	rl.SetIOPriority(ioenum.Compaction, ioenum.Low)
//	granted := rl.Request(ioenum.Compaction, ioenum.Write, int64(len(buf)))
//
// # Concurrency
//
// Request and AsyncRequest are safe for concurrent use from any number of
// goroutines. SetIOPriority and SetIORateLimit are safe to call
// concurrently with in-flight requests; neither is synchronized against
// them (see internal/priolimiter's documented memory model), so a request
// may observe the old or new value, never a torn one.
package ioratelimiter
