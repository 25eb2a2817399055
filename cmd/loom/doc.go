// Command loom is the CLI for the loom generation daemon: it queues audio,
// image, and video generations, inspects the task queue, and manages the
// daemon process.
package main
