package tinydoc

/*
tinydoc is the write path of an embeddable entity database. Entities are stored as record containers
(a body, attributes, associated data, prices and references) and every local mutation applied to an
entity keeps a set of in-memory index partitions consistent with what is stored.

The `tinydoc` module is organized into the following packages:

* `kv/mutation`: the closed set of local mutations and the stored values they produce.
* `kv/schema`: entity schemas, validation of mutation streams and schema auto-evolution.
* `kv/container`: record containers and the executor which applies mutations to them.
* `kv/index`: index partitions (global, referenced entity type, referenced entity) and the registry
  with its copy-on-write layers.
* `kv/indexer`: the attribute, price, associated data and reference index mutators and the executor
  which orchestrates them for one entity.
* `kv/storage`: durable storage on badger, an in-memory double, and the transactional container buffer
  in front of it.
* `kv/collection`: one entity collection tying the above together, with transactions and a
  background flusher.
* `kv/script`: TOML schema and mutation script files.
* `cmd/tinydoc`: command line tool replaying mutation scripts against a collection.

Supporting packages are `kv/config`, `kv/metrics`, `kv/transaction/latches`, `kv/util` and `log`.
*/
