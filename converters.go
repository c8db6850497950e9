package mondoc

import (
	"math/big"
	"net/url"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValueConverter converts a single value between a domain representation and
// a natively storable one. Converters are stateless; nil in is nil out.
type ValueConverter interface {
	Convert(v any) (any, error)
}

// ValueConverterFunc adapts a function to the ValueConverter interface.
type ValueConverterFunc func(v any) (any, error)

func (f ValueConverterFunc) Convert(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	return f(v)
}

// ConverterRegistration couples a converter with its source and target types
// and its read/write applicability.
//
// A registration not explicitly forced in one direction is applied for
// writing when its target is a natively storable type and reading was not
// forced, and for reading when its source is natively storable and writing
// was not forced. The asymmetry is deliberate: it lets "obvious direction"
// converters register once without double-registration ambiguity, and
// several built-ins rely on it. Do not simplify the boolean logic.
type ConverterRegistration struct {
	Source    reflect.Type
	Target    reflect.Type
	Converter ValueConverter

	ForceReading bool
	ForceWriting bool
}

// IsWriting reports whether the registration applies when writing domain
// values into documents.
func (r ConverterRegistration) IsWriting() bool {
	return r.ForceWriting || (!r.ForceReading && isNativeType(r.Target))
}

// IsReading reports whether the registration applies when reading document
// values back into domain values.
func (r ConverterRegistration) IsReading() bool {
	return r.ForceReading || (!r.ForceWriting && isNativeType(r.Source))
}

type convPair struct {
	src reflect.Type
	dst reflect.Type
}

// ConverterRegistry holds the converter catalog consulted during mapping.
// Build one per converter instance and pass it by reference; there is no
// process-wide registry.
type ConverterRegistry struct {
	registrations []ConverterRegistration
	writing       map[reflect.Type]ConverterRegistration
	reading       map[convPair]ConverterRegistration
}

// RegistryOption configures a ConverterRegistry under construction.
type RegistryOption func(r *registryConfig)

type registryConfig struct {
	noDefaults bool
	geoJSON    bool
	extra      []ConverterRegistration
}

// WithoutDefaultConverters builds a registry holding only explicitly added
// registrations.
func WithoutDefaultConverters() RegistryOption {
	return func(r *registryConfig) {
		r.noDefaults = true
	}
}

// WithGeoJSON switches the geo catalog from the legacy shape documents to
// GeoJSON documents.
func WithGeoJSON() RegistryOption {
	return func(r *registryConfig) {
		r.geoJSON = true
	}
}

// WithConverters adds registrations on top of the defaults.
func WithConverters(regs ...ConverterRegistration) RegistryOption {
	return func(r *registryConfig) {
		r.extra = append(r.extra, regs...)
	}
}

func NewConverterRegistry(options ...RegistryOption) *ConverterRegistry {
	cfg := &registryConfig{}
	for _, op := range options {
		op(cfg)
	}

	reg := &ConverterRegistry{
		writing: make(map[reflect.Type]ConverterRegistration),
		reading: make(map[convPair]ConverterRegistration),
	}

	if !cfg.noDefaults {
		for _, r := range defaultConverterRegistrations() {
			reg.Add(r)
		}
		for _, r := range geoConverterRegistrations(cfg.geoJSON) {
			reg.Add(r)
		}
	}
	for _, r := range cfg.extra {
		reg.Add(r)
	}

	return reg
}

// Add registers a converter, honoring its applicability flags.
func (r *ConverterRegistry) Add(reg ConverterRegistration) {
	r.registrations = append(r.registrations, reg)
	if reg.IsWriting() {
		r.writing[reg.Source] = reg
	}
	if reg.IsReading() {
		r.reading[convPair{src: reg.Source, dst: reg.Target}] = reg
	}
}

// WriteConverter returns the converter applied when writing values of the
// given type, together with the storage target type.
func (r *ConverterRegistry) WriteConverter(src reflect.Type) (ValueConverter, reflect.Type, bool) {
	reg, ok := r.lookupWriting(src)
	if !ok {
		return nil, nil, false
	}

	return reg.Converter, reg.Target, true
}

// HasCustomWriteTarget reports whether writing values of the given type goes
// through a registered converter.
func (r *ConverterRegistry) HasCustomWriteTarget(src reflect.Type) bool {
	_, ok := r.lookupWriting(src)
	return ok
}

func (r *ConverterRegistry) lookupWriting(src reflect.Type) (ConverterRegistration, bool) {
	if src == nil {
		return ConverterRegistration{}, false
	}

	if reg, ok := r.writing[src]; ok {
		return reg, true
	}

	// a *T registration serves T values and vice versa
	if src.Kind() == reflect.Ptr {
		if reg, ok := r.writing[src.Elem()]; ok {
			return reg, true
		}
	} else if reg, ok := r.writing[reflect.PtrTo(src)]; ok {
		return reg, true
	}

	return ConverterRegistration{}, false
}

// ReadConverter returns the converter reading stored values of type src into
// domain values of type dst.
func (r *ConverterRegistry) ReadConverter(src, dst reflect.Type) (ValueConverter, bool) {
	if src == nil || dst == nil {
		return nil, false
	}

	if reg, ok := r.reading[convPair{src: src, dst: dst}]; ok {
		return reg.Converter, true
	}

	if dst.Kind() == reflect.Ptr {
		if reg, ok := r.reading[convPair{src: src, dst: dst.Elem()}]; ok {
			return reg.Converter, true
		}
	} else if reg, ok := r.reading[convPair{src: src, dst: reflect.PtrTo(dst)}]; ok {
		return reg.Converter, true
	}

	return nil, false
}

// IsSimpleType reports whether values of the given type are natively
// storable and pass through mapping unconverted.
func (r *ConverterRegistry) IsSimpleType(t reflect.Type) bool {
	return isNativeType(t)
}

var nativeTypes = map[reflect.Type]bool{
	reflect.TypeOf(time.Time{}):             true,
	reflect.TypeOf(time.Duration(0)):        true,
	reflect.TypeOf([]byte(nil)):             true,
	reflect.TypeOf(primitive.ObjectID{}):    true,
	reflect.TypeOf(primitive.DateTime(0)):   true,
	reflect.TypeOf(primitive.Decimal128{}):  true,
	reflect.TypeOf(primitive.Binary{}):      true,
	reflect.TypeOf(primitive.Regex{}):       true,
	reflect.TypeOf(primitive.Timestamp{}):   true,
	reflect.TypeOf(DBRef{}):                 true,
	reflect.TypeOf(bson.D{}):                true,
	reflect.TypeOf(bson.M{}):                true,
	reflect.TypeOf(bson.A{}):                true,
}

func isNativeType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if nativeTypes[t] {
		return true
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// --- built-in scalar catalog ---

func defaultConverterRegistrations() []ConverterRegistration {
	return []ConverterRegistration{
		{
			Source:    reflect.TypeOf(&big.Int{}),
			Target:    reflect.TypeOf(""),
			Converter: ValueConverterFunc(bigIntToString),
		},
		{
			Source:    reflect.TypeOf(""),
			Target:    reflect.TypeOf(&big.Int{}),
			Converter: ValueConverterFunc(stringToBigInt),
		},
		{
			Source:    reflect.TypeOf(&big.Float{}),
			Target:    reflect.TypeOf(primitive.Decimal128{}),
			Converter: ValueConverterFunc(bigFloatToDecimal128),
		},
		{
			Source:    reflect.TypeOf(primitive.Decimal128{}),
			Target:    reflect.TypeOf(&big.Float{}),
			Converter: ValueConverterFunc(decimal128ToBigFloat),
		},
		{
			Source:    reflect.TypeOf(url.URL{}),
			Target:    reflect.TypeOf(""),
			Converter: ValueConverterFunc(urlToString),
			// a URL is stored as a string, but arbitrary strings must not be
			// read back as URLs unless the target field says so
			ForceWriting: true,
		},
		{
			Source:       reflect.TypeOf(""),
			Target:       reflect.TypeOf(url.URL{}),
			Converter:    ValueConverterFunc(stringToURL),
			ForceReading: true,
		},
		{
			Source:    reflect.TypeOf(uuid.UUID{}),
			Target:    reflect.TypeOf(primitive.Binary{}),
			Converter: ValueConverterFunc(uuidToBinary),
		},
		{
			Source:    reflect.TypeOf(primitive.Binary{}),
			Target:    reflect.TypeOf(uuid.UUID{}),
			Converter: ValueConverterFunc(binaryToUUID),
		},
		{
			Source:    reflect.TypeOf(&atomic.Int64{}),
			Target:    reflect.TypeOf(int64(0)),
			Converter: ValueConverterFunc(atomicInt64ToInt64),
		},
		{
			Source:    reflect.TypeOf(&atomic.Int32{}),
			Target:    reflect.TypeOf(int32(0)),
			Converter: ValueConverterFunc(atomicInt32ToInt32),
		},
	}
}

func bigIntToString(v any) (any, error) {
	switch n := v.(type) {
	case *big.Int:
		return n.String(), nil
	case big.Int:
		return n.String(), nil
	default:
		return nil, &ConversionError{Value: v, Target: "string", Reason: "not a big.Int"}
	}
}

func stringToBigInt(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "*big.Int", Reason: "not a string"}
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "*big.Int", Reason: "not a decimal integer"}
	}

	return n, nil
}

func bigFloatToDecimal128(v any) (any, error) {
	var f *big.Float
	switch n := v.(type) {
	case *big.Float:
		f = n
	case big.Float:
		f = &n
	default:
		return nil, &ConversionError{Value: v, Target: "primitive.Decimal128", Reason: "not a big.Float"}
	}

	dec, err := primitive.ParseDecimal128(f.Text('f', -1))
	if err != nil {
		return nil, errors.Wrap(err, "parsing decimal128")
	}

	return dec, nil
}

func decimal128ToBigFloat(v any) (any, error) {
	dec, ok := v.(primitive.Decimal128)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "*big.Float", Reason: "not a Decimal128"}
	}

	f, _, err := big.ParseFloat(dec.String(), 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, errors.Wrap(err, "parsing decimal128 text")
	}

	return f, nil
}

func urlToString(v any) (any, error) {
	switch u := v.(type) {
	case *url.URL:
		return u.String(), nil
	case url.URL:
		return u.String(), nil
	default:
		return nil, &ConversionError{Value: v, Target: "string", Reason: "not a URL"}
	}
}

func stringToURL(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "url.URL", Reason: "not a string"}
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q as URL", s)
	}

	return *u, nil
}

func uuidToBinary(v any) (any, error) {
	u, ok := v.(uuid.UUID)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "primitive.Binary", Reason: "not a UUID"}
	}

	return primitive.Binary{Subtype: 0x04, Data: u[:]}, nil
}

func binaryToUUID(v any) (any, error) {
	b, ok := v.(primitive.Binary)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "uuid.UUID", Reason: "not a Binary"}
	}
	if b.Subtype != 0x04 && b.Subtype != 0x03 {
		return nil, &ConversionError{Value: v, Target: "uuid.UUID", Reason: "binary subtype is not a UUID"}
	}

	u, err := uuid.FromBytes(b.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding UUID bytes")
	}

	return u, nil
}

func atomicInt64ToInt64(v any) (any, error) {
	n, ok := v.(*atomic.Int64)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "int64", Reason: "not an atomic.Int64"}
	}

	return n.Load(), nil
}

func atomicInt32ToInt32(v any) (any, error) {
	n, ok := v.(*atomic.Int32)
	if !ok {
		return nil, &ConversionError{Value: v, Target: "int32", Reason: "not an atomic.Int32"}
	}

	return n.Load(), nil
}
