package decode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/apiproto"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
	"github.com/geoknoesis/semlift-go/internal/xmltree"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/logger"
)

// Options tune the tabular decoders.
type Options struct {
	// InferTypes turns CSV cells into booleans and numbers where they parse.
	InferTypes bool
	// MaxRows caps SQL and dataframe results; zero reads every row.
	MaxRows int
}

// DefaultOptions infers CSV types and reads every row.
func DefaultOptions() Options {
	return Options{InferTypes: true}
}

// Registry decodes every Source variant.
type Registry struct {
	// Protocols serves API sources.
	Protocols *apiproto.Registry
	// Session serves DataFrame sources; nil rejects them.
	Session Session
	// Open opens SQL sources; nil uses sql.Open.
	Open    OpenFunc
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// NewRegistry returns a registry fetching API sources through protocols. A
// nil protocols registry gets the built-in protocols on a default client.
func NewRegistry(protocols *apiproto.Registry) *Registry {
	if protocols == nil {
		protocols = apiproto.NewRegistry(apiproto.NewClient(0))
	}
	return &Registry{Protocols: protocols}
}

// RegisterProtocol adds an API protocol.
func (r *Registry) RegisterProtocol(p apiproto.Protocol) {
	if r.Protocols == nil {
		r.Protocols = apiproto.NewRegistry(apiproto.NewClient(0))
	}
	r.Protocols.Register(p)
}

// Decode turns src into a JSON tree.
func (r *Registry) Decode(ctx context.Context, src Source, opts Options) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	doc, err := r.decode(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	kind := Kind(src)
	r.Metrics.RecordStep("decode-"+kind, time.Since(start))
	logger.Or(r.Logger).Debugw("decoded input", "source", kind, "duration", time.Since(start))
	return doc, nil
}

func (r *Registry) decode(ctx context.Context, src Source, opts Options) (any, error) {
	switch s := src.(type) {
	case JSON:
		doc, err := jsonptr.Decode(s.Data)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode JSON input"), errors.ErrConfiguration)
		}
		return doc, nil
	case XML:
		doc, err := xmltree.Decode(s.Data)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode XML input"), errors.ErrConfiguration)
		}
		return doc, nil
	case CSV:
		return decodeCSV(s, opts.InferTypes)
	case SQL:
		return r.decodeSQL(ctx, s, opts.MaxRows)
	case DataFrame:
		if r.Session == nil {
			return nil, errors.Configuration("dataframe input requires a session")
		}
		return decodeDataFrame(ctx, r.Session, s, opts.MaxRows)
	case API:
		if r.Protocols == nil {
			return nil, errors.Configuration("API input requires a protocol registry")
		}
		return r.Protocols.Fetch(ctx, s.Protocol, s.Config)
	case nil:
		return nil, errors.Configuration("no input source")
	default:
		return nil, errors.Configuration("unsupported input source %T", src)
	}
}
