// Package service is the write path of the tree server. It owns the
// concurrent map and coordinates the mutation log, checkpoints and the
// change-event outbox around it, independent of any transport.
package service
