package dynamotest

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// evalCondition evaluates the condition and key-condition subset the
// adapter emits: predicates joined by a single OR or AND, where each
// predicate is attribute_exists(name), attribute_not_exists(name),
// begins_with(name, :value) or name = :value. A nil item behaves as a row
// with no attributes.
func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if parts := strings.Split(expr, " OR "); len(parts) > 1 {
		for _, part := range parts {
			ok, err := evalCondition(part, item, names, values)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	if parts := strings.Split(expr, " AND "); len(parts) > 1 {
		for _, part := range parts {
			ok, err := evalCondition(part, item, names, values)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}

	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, "attribute_not_exists(") && strings.HasSuffix(expr, ")"):
		name, err := resolveName(expr[len("attribute_not_exists("):len(expr)-1], names)
		if err != nil {
			return false, err
		}
		_, ok := item[name]
		return !ok, nil

	case strings.HasPrefix(expr, "attribute_exists(") && strings.HasSuffix(expr, ")"):
		name, err := resolveName(expr[len("attribute_exists("):len(expr)-1], names)
		if err != nil {
			return false, err
		}
		_, ok := item[name]
		return ok, nil

	case strings.HasPrefix(expr, "begins_with(") && strings.HasSuffix(expr, ")"):
		lhs, rhs, found := strings.Cut(expr[len("begins_with("):len(expr)-1], ",")
		if !found {
			return false, fmt.Errorf("dynamotest: malformed begins_with in %q", expr)
		}
		name, err := resolveName(strings.TrimSpace(lhs), names)
		if err != nil {
			return false, err
		}
		want, err := stringValue(values, strings.TrimSpace(rhs))
		if err != nil {
			return false, err
		}
		attr, ok := item[name].(*types.AttributeValueMemberS)
		return ok && strings.HasPrefix(attr.Value, want), nil

	case strings.Contains(expr, " = "):
		lhs, rhs, _ := strings.Cut(expr, " = ")
		name, err := resolveName(strings.TrimSpace(lhs), names)
		if err != nil {
			return false, err
		}
		want, ok := values[strings.TrimSpace(rhs)]
		if !ok {
			return false, fmt.Errorf("dynamotest: missing expression value %q", strings.TrimSpace(rhs))
		}
		got, ok := item[name]
		if !ok {
			return false, nil
		}
		return attrEqual(got, want), nil
	}

	return false, fmt.Errorf("dynamotest: unsupported expression %q", expr)
}

// applyUpdate applies a SET-only update expression to item in place.
func applyUpdate(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	rest, ok := strings.CutPrefix(expr, "SET ")
	if !ok {
		return fmt.Errorf("dynamotest: unsupported update expression %q", expr)
	}
	for _, clause := range strings.Split(rest, ",") {
		lhs, rhs, found := strings.Cut(strings.TrimSpace(clause), " = ")
		if !found {
			return fmt.Errorf("dynamotest: malformed SET clause %q", clause)
		}
		name, err := resolveName(strings.TrimSpace(lhs), names)
		if err != nil {
			return err
		}
		value, ok := values[strings.TrimSpace(rhs)]
		if !ok {
			return fmt.Errorf("dynamotest: missing expression value %q", strings.TrimSpace(rhs))
		}
		item[name] = value
	}
	return nil
}

// project copies the attributes named by a projection expression. Aliases
// resolve through names but, as in the real service, results carry the
// real attribute names. A nil projection copies the whole item.
func project(item map[string]types.AttributeValue, projection *string, names map[string]string) (map[string]types.AttributeValue, error) {
	if projection == nil {
		return copyItem(item), nil
	}
	out := map[string]types.AttributeValue{}
	for _, field := range strings.Split(*projection, ",") {
		name, err := resolveName(strings.TrimSpace(field), names)
		if err != nil {
			return nil, err
		}
		if v, ok := item[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

// resolveName maps an expression attribute alias to its real name. Bare
// names pass through; an unmapped alias is a caller bug and errors.
func resolveName(name string, names map[string]string) (string, error) {
	if !strings.HasPrefix(name, "#") {
		return name, nil
	}
	real, ok := names[name]
	if !ok {
		return "", fmt.Errorf("dynamotest: unmapped attribute alias %q", name)
	}
	return real, nil
}

func stringValue(values map[string]types.AttributeValue, ref string) (string, error) {
	v, ok := values[ref]
	if !ok {
		return "", fmt.Errorf("dynamotest: missing expression value %q", ref)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamotest: expression value %q is not a string", ref)
	}
	return s.Value, nil
}

// attrEqual compares the scalar attribute types the adapter stores.
func attrEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberNULL:
		bv, ok := b.(*types.AttributeValueMemberNULL)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}
