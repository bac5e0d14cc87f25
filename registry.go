package sqlbook

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Registry is a built, read-only tree of callable queries bound to a driver
type Registry struct {
	root     *Namespace
	driver   Driver
	variants Variants
}

// FromString builds a registry from annotated sql source text
//
// options can be any of Records, UnusedParameters, ErrorTranslator, *slog.Logger, Variants, UseDecimals,
// ColumnScanners, RowPostProcessor or Limiter
func FromString(source string, driver Driver, options ...any) (*Registry, error) {
	b, err := newBuilder(driver, options)
	if err != nil {
		return nil, err
	}
	defs, err := ParseString(source, ParseOptions{Variants: b.opts.variants})
	if err != nil {
		return nil, err
	}
	if err = b.addAll(b.root, defs); err != nil {
		return nil, err
	}
	return b.registry(), nil
}

// MustFromString is the same as FromString except that it panics on error
func MustFromString(source string, driver Driver, options ...any) *Registry {
	r, err := FromString(source, driver, options...)
	if err != nil {
		panic(err)
	}
	return r
}

// Root returns the root namespace
func (r *Registry) Root() *Namespace {
	return r.root
}

// Driver returns the driver the registry is bound to
func (r *Registry) Driver() Driver {
	return r.driver
}

// Lookup resolves a dotted path (e.g. "blogs.get_user_blogs") to a query
func (r *Registry) Lookup(path string) (*Query, error) {
	return r.root.Lookup(path)
}

// Variant resolves a dotted path to the dialect variant of the query for the bound driver - e.g. with a
// postgres driver, "blogs.publish_blog" resolves "blogs.pg_publish_blog" if it exists, "blogs.publish_blog" otherwise
func (r *Registry) Variant(path string) (*Query, error) {
	parent, leaf, err := r.root.resolveParent(path)
	if err != nil {
		return nil, err
	}
	if prefix := r.variants[r.driver.Dialect().Name]; prefix != "" {
		if q, ok := parent.queries[prefix+leaf]; ok {
			return q, nil
		}
	}
	if q, ok := parent.queries[leaf]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoQuery, path)
}

// Walk calls fn for every query in the registry (depth first, in order)
func (r *Registry) Walk(fn func(q *Query) error) error {
	return r.root.Walk(fn)
}

// Check reports every query whose kind needs a capability the bound driver lacks
//
// queries tagged for a different dialect than the driver's are not checked
func (r *Registry) Check() error {
	var errs []error
	_ = r.root.Walk(func(q *Query) error {
		if q.def.Dialect != "" && q.def.Dialect != r.driver.Dialect().Name {
			return nil
		}
		if err := q.supported(); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	return errors.Join(errs...)
}

type registryOptions struct {
	records     Records
	unused      UnusedParameters
	translator  ErrorTranslator
	logger      *slog.Logger
	variants    Variants
	useDecimals bool
	scanners    ColumnScanners
	processors  []RowPostProcessor
	limiter     Limiter
}

func processOptions(options []any) (*registryOptions, error) {
	result := &registryOptions{
		records:    Records{},
		translator: defaultErrorTranslator,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		variants:   DefaultVariants,
		scanners:   ColumnScanners{},
		limiter:    defaultLimiter,
	}
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Records:
				for k, v := range option {
					result.records[k] = v
				}
			case UnusedParameters:
				result.unused = option
			case ErrorTranslator:
				result.translator = option
			case RowPostProcessor:
				result.processors = append(result.processors, option)
			case Limiter:
				result.limiter = option
			case *slog.Logger:
				result.logger = option
			case Variants:
				result.variants = option
			case UseDecimals:
				result.useDecimals = bool(option)
			case ColumnScanners:
				for k, v := range option {
					result.scanners[k] = v
				}
			default:
				return nil, fmt.Errorf("unknown option type: %T", o)
			}
		}
	}
	return result, nil
}

type builder struct {
	driver Driver
	opts   *registryOptions
	root   *Namespace
}

func newBuilder(driver Driver, options []any) (*builder, error) {
	if driver == nil {
		return nil, errors.New("no driver")
	}
	opts, err := processOptions(options)
	if err != nil {
		return nil, err
	}
	return &builder{
		driver: driver,
		opts:   opts,
		root:   newNamespace("", ""),
	}, nil
}

func (b *builder) registry() *Registry {
	return &Registry{
		root:     b.root,
		driver:   b.driver,
		variants: b.opts.variants,
	}
}

func (b *builder) addAll(ns *Namespace, defs []QueryDefinition) error {
	for _, def := range defs {
		q, err := b.build(ns, def)
		if err != nil {
			return err
		}
		if err = ns.addQuery(q); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) build(ns *Namespace, def QueryDefinition) (*Query, error) {
	q := &Query{
		def:        def,
		path:       ns.qualified(def.Name),
		driver:     b.driver,
		unused:     b.opts.unused,
		translator: b.opts.translator,
		logger:     b.opts.logger,
		processors: b.opts.processors,
		limiter:    b.opts.limiter,
		mapper: &rowMapper{
			useDecimals: b.opts.useDecimals,
			scanners:    b.opts.scanners,
		},
	}
	if def.RecordType != "" {
		factory, ok := b.opts.records[def.RecordType]
		if !ok || factory == nil {
			return nil, &UnknownRecordTypeError{Query: q.path, RecordType: def.RecordType}
		}
		q.mapper.record = factory
	}
	if def.Kind != ExecuteScript {
		q.compiled = compileSQL(def.SQL)
		q.returning = def.Kind == InsertReturning && returningClause.MatchString(def.SQL)
	}
	return q, nil
}

// namespaceFor returns the namespace for a relative directory path, creating branches as needed
func (b *builder) namespaceFor(dir string, source string) (ns *Namespace, err error) {
	ns = b.root
	for _, part := range strings.FieldsFunc(dir, isPathSeparator) {
		if part == "." {
			continue
		}
		if ns, err = ns.child(strings.ReplaceAll(part, "-", "_"), source); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

func isPathSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
