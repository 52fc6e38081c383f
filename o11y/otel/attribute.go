package otel

import (
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func attr(key string, val any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := val.(type) {
	case nil:
		return k.String("")
	case string:
		return k.String(v)
	case bool:
		return k.Bool(v)
	case int:
		return k.Int64(int64(v))
	case int8:
		return k.Int64(int64(v))
	case int16:
		return k.Int64(int64(v))
	case int32:
		return k.Int64(int64(v))
	case int64:
		return k.Int64(v)
	case float32:
		return k.Float64(float64(v))
	case float64:
		return k.Float64(v)
	case time.Duration:
		return k.Int64(v.Milliseconds())
	case []string:
		return k.StringSlice(v)
	case error:
		return k.String(v.Error())
	}
	if rv := reflect.ValueOf(val); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return k.String("")
	}
	if s, ok := val.(fmt.Stringer); ok {
		return k.String(s.String())
	}
	return k.String(fmt.Sprintf("%v", val))
}
