package redis

import "fmt"

// Key layout:
//   ratelimit:<bucket>:<identifier>  counter with 1m expiry
//   queue:<name>                     task list
//   queue:<name>:job:<id>            dedup claim for a job id
//   bots:stop                        pub/sub channel for stop signals

// RateLimitKey builds the counter key for a rate-limit bucket.
func RateLimitKey(identifier, bucket string) string {
	return fmt.Sprintf("ratelimit:%s:%s", bucket, identifier)
}

// QueueKey builds the list key backing a task queue.
func QueueKey(name string) string {
	return fmt.Sprintf("queue:%s", name)
}

// JobClaimKey builds the dedup claim key for a job id on a queue.
func JobClaimKey(queue, jobID string) string {
	return fmt.Sprintf("queue:%s:job:%s", queue, jobID)
}

// StopChannel is the pub/sub channel carrying bot stop signals.
const StopChannel = "bots:stop"
