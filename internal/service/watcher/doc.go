// Package watcher polls the alarm history of a running server and logs every
// transition it has not reported before.
package watcher
