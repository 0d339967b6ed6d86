// Package ledger keeps an audit trail of L402 payment challenges surfaced to
// clients and of credential store/clear events.
//
// The ledger never stores macaroons or preimages; paid credentials live only
// in memory for the lifetime of a session. What it keeps is enough to answer
// "which invoices did we hand out, to which session, for how much".
//
// SQLiteLedger is backed by modernc.org/sqlite with WAL enabled. Observer
// adapts a Ledger to routing.Observer so the gateway records challenges as
// they happen.
package ledger
