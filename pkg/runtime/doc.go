// Package runtime drives a live form instance.
//
// An Instance owns the values, flags and errors of one form session. Every
// mutation (SetValue, Revalidate, Swap, async validator and lookup results)
// is queued and applied by a single goroutine, one transaction at a time.
// After each transaction an immutable State snapshot is published and
// delivered to subscribers.
//
// Custom validators and lookup fetches run in their own goroutines. Their
// results carry the field generation they were started for and are dropped
// when the field has moved on.
//
// Listeners run on the loop goroutine. They may call SetValue but must not
// block on Sync, Settle or Submit.
package runtime
