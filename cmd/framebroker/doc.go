// Command framebroker runs the frame broker, its workers, and the producer
// client, and inspects a running broker over the admin socket.
//
// Commands:
//
//	framebroker serve            run the broker in the foreground
//	framebroker start | stop     manage a background broker
//	framebroker worker           connect a frame-processing worker
//	framebroker submit INPUT     split a video, submit it, and write the result
//	framebroker status           show workers, sessions, and counters
//	framebroker history          list finished jobs
//	framebroker logs             show or follow the broker log
//	framebroker test-notify      send a test ntfy notification
//	framebroker config init      write a sample configuration
//	framebroker config validate  load and check the configuration
package main
