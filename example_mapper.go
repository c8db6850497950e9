package mondoc

import (
	"reflect"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StringMatchMode controls how string values of a probe are matched.
type StringMatchMode int

const (
	// MatchExact matches string values by equality.
	MatchExact StringMatchMode = iota
	// MatchContaining matches string values as substrings.
	MatchContaining
	// MatchStartingWith matches string values as prefixes.
	MatchStartingWith
	// MatchEndingWith matches string values as suffixes.
	MatchEndingWith
	// MatchRegex uses the probe's string values as regular expressions.
	MatchRegex
)

// ExampleMatcher tunes how a probe turns into criteria.
type ExampleMatcher struct {
	// MatchAny ors the probe's criteria instead of anding them.
	MatchAny bool
	// IgnoreCase makes string matching case insensitive.
	IgnoreCase bool
	// StringMatch is the default mode for string values.
	StringMatch StringMatchMode
	// IgnoredPaths excludes probe properties from the criteria.
	IgnoredPaths []string
	// PropertyMatchers overrides the string mode for single properties.
	PropertyMatchers map[string]StringMatchMode
	// IncludeZero keeps zero-valued probe fields in the criteria instead of
	// treating them as unset.
	IncludeZero bool
}

// Example is a query-by-example probe: a domain value whose populated fields
// become equality (or string-match) criteria.
type Example struct {
	Probe   any
	Matcher ExampleMatcher
}

// ExampleMapper turns probes into mapped criteria documents.
type ExampleMapper struct {
	converter *Converter
}

func NewExampleMapper(converter *Converter) *ExampleMapper {
	return &ExampleMapper{converter: converter}
}

// MappedExample maps a probe into criteria against storage field names.
// Nested documents flatten into dotted paths; zero-valued fields are
// dropped unless the matcher keeps them.
func (m *ExampleMapper) MappedExample(example Example, entity *Entity) (bson.D, error) {
	if example.Probe == nil {
		return bson.D{}, nil
	}

	doc, err := m.converter.Write(example.Probe)
	if err != nil {
		return nil, err
	}

	probeEntity := m.converter.Mapping().EntityOf(example.Probe)
	if probeEntity == nil {
		probeEntity = entity
	}

	ignored := make(map[string]struct{}, len(example.Matcher.IgnoredPaths))
	for _, path := range example.Matcher.IgnoredPaths {
		ignored[m.mappedPath(path, probeEntity)] = struct{}{}
	}

	modes := make(map[string]StringMatchMode, len(example.Matcher.PropertyMatchers))
	for path, mode := range example.Matcher.PropertyMatchers {
		modes[m.mappedPath(path, probeEntity)] = mode
	}

	var flat bson.D
	m.flatten("", doc, example.Matcher, ignored, &flat)

	criteria := make(bson.D, 0, len(flat))
	for _, entry := range flat {
		mode, ok := modes[entry.Key]
		if !ok {
			mode = example.Matcher.StringMatch
		}
		criteria = append(criteria, bson.E{
			Key:   entry.Key,
			Value: matchValue(entry.Value, mode, example.Matcher.IgnoreCase),
		})
	}

	if example.Matcher.MatchAny && len(criteria) > 1 {
		branches := make(bson.A, len(criteria))
		for i, entry := range criteria {
			branches[i] = bson.D{entry}
		}

		return bson.D{{Key: "$or", Value: branches}}, nil
	}

	return criteria, nil
}

func (m *ExampleMapper) flatten(prefix string, doc bson.D, matcher ExampleMatcher, ignored map[string]struct{}, out *bson.D) {
	for _, entry := range doc {
		key := entry.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if _, skip := ignored[key]; skip {
			continue
		}
		if !matcher.IncludeZero && isZeroProbeValue(entry.Value) {
			continue
		}

		if nested, ok := entry.Value.(bson.D); ok {
			if _, isRef := dbRefFromDocument(nested); !isRef {
				m.flatten(key, nested, matcher, ignored, out)
				continue
			}
		}

		*out = append(*out, bson.E{Key: key, Value: entry.Value})
	}
}

// mappedPath translates a property path of the probe into its storage key,
// keeping unresolvable paths as given.
func (m *ExampleMapper) mappedPath(path string, entity *Entity) string {
	if entity == nil {
		return path
	}

	segments := strings.Split(path, ".")
	current := entity
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if current == nil {
			out = append(out, segment)
			continue
		}

		prop := current.Property(segment)
		if prop == nil {
			out = append(out, segment)
			current = nil
			continue
		}

		out = append(out, prop.FieldName)
		if prop.Target != nil && prop.Target.Kind() == reflect.Struct {
			current = m.converter.Mapping().EntityOfType(prop.Target)
		} else {
			current = nil
		}
	}

	return strings.Join(out, ".")
}

func matchValue(value any, mode StringMatchMode, ignoreCase bool) any {
	s, isString := value.(string)
	if !isString {
		return value
	}

	var options string
	if ignoreCase {
		options = "i"
	}

	switch mode {
	case MatchContaining:
		return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: options}
	case MatchStartingWith:
		return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s), Options: options}
	case MatchEndingWith:
		return primitive.Regex{Pattern: regexp.QuoteMeta(s) + "$", Options: options}
	case MatchRegex:
		return primitive.Regex{Pattern: s, Options: options}
	default:
		if ignoreCase {
			return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: options}
		}
		return value
	}
}

// isZeroProbeValue treats nil and zero values as unset probe fields.
func isZeroProbeValue(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}

	return rv.IsZero()
}
