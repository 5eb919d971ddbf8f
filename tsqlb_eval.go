package tsqlb

import (
	r "reflect"
)

/*
Evaluates a read-only access path against a captured value. Each step
dereferences pointers and interfaces, then reads an exported field, a map entry
with a string-like key, or the result of an exported nullary method with one
result. A nil encountered midway yields nil, which binds as SQL null.
*/
func evalPath(root any, path []string) (any, error) {
	val := r.ValueOf(root)

	for _, name := range path {
		val = valueDeref(val)
		if !val.IsValid() {
			return nil, nil
		}

		next, err := evalMember(val, name)
		if err != nil {
			return nil, err
		}
		val = next
	}

	if !val.IsValid() || isValueNil(val) {
		return nil, nil
	}
	return normNil(val.Interface()), nil
}

func evalMember(val r.Value, name string) (r.Value, error) {
	const while = `evaluating captured value`
	typ := val.Type()

	if typ.Kind() == r.Struct {
		field, ok := typ.FieldByName(name)
		if ok && isPublic(field.PkgPath) {
			out, err := val.FieldByIndexErr(field.Index)
			if err != nil {
				// Nil embedded pointer on the way to a promoted field.
				return r.Value{}, nil
			}
			return out, nil
		}
	}

	if typ.Kind() == r.Map && typ.Key().Kind() == r.String {
		out := val.MapIndex(r.ValueOf(name).Convert(typ.Key()))
		if out.IsValid() {
			return out, nil
		}
		return r.Value{}, errUnknownMember(while, typ, name)
	}

	meth := val.MethodByName(name)
	if !meth.IsValid() && val.CanAddr() {
		meth = val.Addr().MethodByName(name)
	}
	if meth.IsValid() {
		err := reqGetter(meth.Type(), typ, name)
		if err != nil {
			return r.Value{}, err
		}
		return meth.Call(nil)[0], nil
	}

	return r.Value{}, errUnknownMember(while, typ, name)
}

func reqGetter(meth, typ r.Type, name string) error {
	const while = `evaluating captured method`

	if inputs := meth.NumIn(); inputs != 0 {
		return errUnsupported(while, errf(
			`can't evaluate %q of %v: expected 0 parameters, found %v parameters`,
			name, typ, inputs,
		))
	}
	if outputs := meth.NumOut(); outputs != 1 {
		return errUnsupported(while, errf(
			`can't evaluate %q of %v: expected 1 return parameter, found %v return parameters`,
			name, typ, outputs,
		))
	}
	return nil
}
