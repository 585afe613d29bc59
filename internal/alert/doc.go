// Package alert turns a ChangeSet into alert events and delivers them.
//
// Evaluate compares a ChangeSet against Thresholds and returns one event per
// triggered condition. Delivery goes through the Notifier interface;
// Dispatch sends events one by one and logs, but never returns, delivery
// failures so that a broken notification channel cannot abort a monitor run.
package alert
