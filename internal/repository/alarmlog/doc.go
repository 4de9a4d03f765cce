// Package alarmlog keeps a bounded, newest-first history of alarm transitions.
package alarmlog
