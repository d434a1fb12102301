// Package queue implements the process-wide task-queue scheduler: orphan
// recovery on start, dependency-gated FIFO pick, single in-flight task per
// instance, pause/resume, cooperative stop, and a notification hook on
// every terminal transition. Grounded on test_queue_executor.py's observed
// QueueExecutor behavior (only surviving artifact of the original
// executor) and the teacher's worker-loop idiom.
package queue
