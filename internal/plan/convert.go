package plan

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"planforge/internal/catalog"
)

// dateLayouts are the ISO-8601 forms accepted for date-typed components,
// tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// convert turns a raw untyped value into the spec's target type. JSON
// numbers arrive as float64 and string representations of numbers and bools
// are accepted; anything else is a conversion failure naming the target
// type.
func (r *Resolver) convert(ctx context.Context, spec *catalog.ParameterSpec, raw any) (any, error) {
	switch spec.Kind {
	case catalog.KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to string", raw)
		}
		return s, nil

	case catalog.KindInt:
		return convertInt(raw)

	case catalog.KindFloat:
		return convertFloat(raw)

	case catalog.KindBool:
		return convertBool(raw)

	case catalog.KindDate:
		return convertDate(raw)

	case catalog.KindEnum:
		return convertEnum(spec, raw)

	case catalog.KindArray:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to array", raw)
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			converted, err := r.convert(ctx, spec.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			out = append(out, converted)
		}
		return out, nil

	case catalog.KindObject:
		return r.convertObject(ctx, spec, raw)

	case catalog.KindDelegate:
		resolver, ok := r.resolvers.Lookup(spec.ResolverID)
		if !ok {
			return nil, fmt.Errorf("%w: %q", catalog.ErrResolverNotFound, spec.ResolverID)
		}
		value, err := resolver.Resolve(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("delegate type %q: %v", spec.ResolverID, err)
		}
		return value, nil

	default:
		return nil, fmt.Errorf("unknown parameter kind %q", spec.Kind)
	}
}

// convertObject maps raw key->value fields onto the spec's named components.
// Unknown and missing fields are both failures; nested conversion recurses.
func (r *Resolver) convertObject(ctx context.Context, spec *catalog.ParameterSpec, raw any) (any, error) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to object", raw)
	}

	declared := make(map[string]bool, len(spec.Fields))
	out := make(map[string]any, len(spec.Fields))
	for i := range spec.Fields {
		field := &spec.Fields[i]
		declared[field.Name] = true

		rawField, present := fields[field.Name]
		if !present {
			return nil, fmt.Errorf("missing component %q", field.Name)
		}
		converted, err := r.convert(ctx, field, rawField)
		if err != nil {
			return nil, fmt.Errorf("component %q: %v", field.Name, err)
		}
		out[field.Name] = converted
	}

	for name := range fields {
		if !declared[name] {
			return nil, fmt.Errorf("unknown component %q", name)
		}
	}

	return out, nil
}

func convertInt(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("cannot convert %v to int", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as int", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int", raw)
	}
}

func convertFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as float", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float", raw)
	}
}

func convertBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as bool", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", raw)
	}
}

func convertDate(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to date", raw)
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as ISO-8601 date", s)
}

func convertEnum(spec *catalog.ParameterSpec, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to enum", raw)
	}
	for _, constant := range spec.Constants {
		if equalsFold(constant, s, spec.CaseSensitive) {
			// Return the declared spelling, not the raw one.
			return constant, nil
		}
	}
	return nil, fmt.Errorf("value %q is not one of [%s]", s, strings.Join(spec.Constants, ", "))
}

// checkConstraints validates the stringified converted value against the
// spec's allowed-value set and regex, honoring the case-sensitivity flag.
func checkConstraints(spec *catalog.ParameterSpec, value any) error {
	if len(spec.Allowed) == 0 && spec.Pattern == "" {
		return nil
	}

	str := stringify(value)

	if len(spec.Allowed) > 0 {
		found := false
		for _, allowed := range spec.Allowed {
			if equalsFold(allowed, str, spec.CaseSensitive) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %q is not in allowed set [%s]", str, strings.Join(spec.Allowed, ", "))
		}
	}

	if spec.Pattern != "" {
		// Spec validity is checked at registration; compile cannot fail here.
		re := regexp.MustCompile(spec.Pattern)
		if !re.MatchString(str) {
			return fmt.Errorf("value %q does not match pattern %q", str, spec.Pattern)
		}
	}

	return nil
}

func stringify(value any) string {
	if t, ok := value.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", value)
}

func equalsFold(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}
