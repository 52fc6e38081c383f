package grpc

import (
	"strings"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/circleci/testservers/o11y"
)

// spanName turns "/package.Service/Method" into the span name "package.Service/Method",
// with rpc.service and rpc.method fields for the parts that are present.
func spanName(fullMethod string) (string, []o11y.Pair) {
	name, ok := strings.CutPrefix(fullMethod, "/")
	if !ok {
		return fullMethod, nil
	}
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return name, nil
	}

	var fields []o11y.Pair
	if service := name[:i]; service != "" {
		fields = append(fields, o11y.Field(string(semconv.RPCServiceKey), service))
	}
	if method := name[i+1:]; method != "" {
		fields = append(fields, o11y.Field(string(semconv.RPCMethodKey), method))
	}
	return name, fields
}
