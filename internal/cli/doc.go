// Package cli implements vosctl, the maintenance tool for the access data.
//
// Every command opens the same core the server uses, so store locking,
// the maintenance lock and the credential key behave identically. Typical
// uses: reset a forgotten password, end a stuck session, force the daily
// quota reset, take an S3 backup or move the documents into PostgreSQL.
package cli
