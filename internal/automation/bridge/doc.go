/*
Package bridge drives sessions running in a browser automation bridge over
HTTP and WebSocket.

# Protocol

	POST   /sessions/{id}           launch, body automation.LaunchOptions
	GET    /sessions/{id}/events?generation=
	                                websocket: {"type":"qr","data":...},
	                                {"type":"ready"}, {"type":"error","error":...}
	POST   /sessions/{id}/messages  {"to":...,"text":...} -> delivery result
	GET    /sessions/{id}/state     {"state":"CONNECTED"}
	DELETE /sessions/{id}?generation=
	                                close the browser; 409 if relaunched
	GET    /healthz

Every launch carries the generation of the handshake that started it. A
session id reused after a delete is relaunched under a new generation, and
teardown for an older one is refused with 409, which the driver treats as
already closed.

The bridge replays the latest QR code (or ready) to a stream that connects
after launch, so nothing is lost between the launch call and the dial.

# Resilience

Commands (launch, send, close) are sent once. State reads go through a
go-retryablehttp transport. Every call passes a circuit breaker; 4xx answers
count as rejections (automation.ErrRejected) and do not trip it.
*/
package bridge
