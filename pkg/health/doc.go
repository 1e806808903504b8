/*
Package health watches the gateway's collaborators and feeds the component
registry behind /health and /ready.

	┌──────────┐  every interval   ┌──────────────┐
	│ Monitor  │──────────────────►│ Checker      │
	└────┬─────┘                   │  TCP         │ ridian, lottrack, alert
	     │                         │  Directory   │ bolt / postgres lookup
	     │ Status.Update           └──────────────┘
	     ▼
	metrics.UpdateComponent(name, healthy, message)

A component starts healthy. It turns unhealthy after Retries consecutive
failed checks and healthy again on the next success, so one dropped dial
does not flap readiness. Checks run concurrently, each bounded by Timeout.

TCP checks only open and close a connection. Ridian, lot tracking and the
alert receiver all accept bare connects; none of them is sent a frame.

Whether a component gates readiness is decided by metrics.SetCriticalComponents,
not here: by default only the stocker listener and the directory are critical,
so a Ridian outage shows on /health while the gateway keeps accepting
stockers in bypass-capable mode.
*/
package health
