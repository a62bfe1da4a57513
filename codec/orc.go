package codec

import "github.com/trivago/secorgo/secerrors"

// ORC is the columnar FileCodec variant (spec.md §4.4). It requires a
// schema per topic (enforced at construction via a SchemaError) and maps
// the source Kafka compression codec to an ORC compression kind. The
// columnar stripe/footer binary layout of a real ORC file is out of
// scope (spec.md §1: "concrete file codecs… and compression codecs" are
// external collaborators) — this type exists to make the
// schema-requirement and compression-mapping invariants testable, and
// delegates actual record framing to Delimited so the KeyValue contract
// still round-trips.
type ORC struct {
	Delimited
	schema          string
	orcCompression  ORCCompressionKind
}

func NewORC(opts Options) (Codec, error) {
	if opts.Schema == "" {
		return nil, secerrors.NewSchemaError("", errMissingSchema)
	}
	return &ORC{
		Delimited:      Delimited{opts: opts},
		schema:         opts.Schema,
		orcCompression: KafkaToORCCompression(opts.Compression),
	}, nil
}

// Schema returns the schema this codec was constructed with.
func (o *ORC) Schema() string { return o.schema }

// CompressionKind returns the ORC compression kind derived from the
// source Kafka compression codec.
func (o *ORC) CompressionKind() ORCCompressionKind { return o.orcCompression }

var errMissingSchema = schemaMissingError{}

type schemaMissingError struct{}

func (schemaMissingError) Error() string { return "orc codec requires a schema for this topic" }
