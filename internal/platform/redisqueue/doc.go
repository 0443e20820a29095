// Package redisqueue implements task.Broker and task.ResultBackend on Redis.
//
// The broker is a reliable list queue: producers LPUSH onto the queue key and
// consumers BLMOVE each message onto a per-consumer processing list, removing
// it on Ack. Messages left on a processing list by a crashed consumer are
// moved back by Recover at startup.
package redisqueue
