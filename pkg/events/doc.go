/*
Package events provides the in-memory broker behind the admin event stream.

Sessions publish what happens on the stocker floor; the admin API relays it
to websocket clients:

	session ──Publish──► eventCh (256) ──► broadcast loop
	                                          │
	                     ┌────────────────────┼────────────────────┐
	                     ▼                    ▼                    ▼
	               Subscriber (64)      Subscriber (64)      Subscriber (64)
	                     │
	               /api/v1/events

Publish never blocks. An event is dropped when the queue or a subscriber's
buffer is full, so a slow admin client cannot stall a stocker session.

Event types:

	session.opened       connection accepted
	session.identified   Connect resolved the stocker and its carrier type
	session.closed       session loop ended (metadata: reason)
	unit.associated      carrier bound to a logical ID
	unit.disassociated   carrier released from a logical ID
	unit.input           carrier entered at an input port
	unit.output          carrier left at an output port
	unit.compensated     a directory change was rolled back
	barcode.failed       barcode read gave up

Usage:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for ev := range sub {
		fmt.Println(ev.Type, ev.Stocker, ev.Message)
	}
*/
package events
