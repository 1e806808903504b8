/*
Package directory stores the site data the gateway resolves on every
request: stocker type codes, port descriptors, carrier associations,
bare-reticle tag mappings and lot snapshots.

Two Store implementations share the Directory interface:

	┌──────────────── Directory ─────────────────┐
	│ Stocker  PortBySensor  Port  PortByReader  │
	│ Carrier  CarrierByLogical                  │
	│ Associate  Disassociate                    │
	│ Tag  TagOwner  PutTag  Lot                 │
	└───────────────┬───────────────┬────────────┘
	                │               │
	     ┌──────────▼─────┐   ┌─────▼───────────┐
	     │  BoltStore     │   │  SQLStore       │
	     │  bbolt file    │   │  gorm/postgres  │
	     │  JSON buckets  │   │  stk_* tables   │
	     └────────────────┘   └─────────────────┘

# Associations

A carrier holds at most one logical ID and a logical ID names at most one
carrier. BoltStore keeps the reverse mapping in the "logicals" bucket and
SQLStore in stk_logicals. Associate and Disassociate are idempotent, so
associating and then disassociating a pair leaves the store as it was.
Logical IDs are compared with trailing blanks removed.

# Seeds

A Seed is the YAML form of a whole directory:

	stockers:
	  - {name: ST001A, type: ST01}
	ports:
	  - {name: PORT-A, sensor_id: IRT-0001, direction: I, reader_ip: 10.0.0.21, stocker: ST001A}
	carriers:
	  - {id: CST001, logical_id: LOT001, clean_days: 30}

Type codes are ST01 (lot), ST02 (reticle pod) and ST03 (bare reticle).
*/
package directory
