// Package admission decides whether a connecting soft AP client may
// stay, and tracks force-disconnect commands that failed and need one
// bounded retry.
//
// The controller never talks to the driver itself. The session state
// machine calls Decide on every client-connected event, issues the
// force-disconnect command when the decision is a block, and reports
// command failures back via MarkPendingRetry. A pending entry is cleared
// by whichever happens first: the retry succeeding or the client's own
// disconnect event arriving.
package admission
