package config

type QueueKeyStruct struct {
	AttemptCompletedQueue string
}

// QueueKey names the Redis lists shared with external consumers.
var QueueKey = &QueueKeyStruct{
	AttemptCompletedQueue: "attempt_completed_queue",
}
