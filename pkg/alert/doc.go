// Package alert sends operator alerts (HMTR, MSG_CODE MC06) through the
// hand-held terminal gateway. Alert text is built with Text:
//
//	Connect error^STK[CRST01]^BCR[R00001]^RET[RET-001]
//
// Delivery is rate limited per Client with golang.org/x/time/rate; alerts
// over the limit are dropped and counted.
package alert
