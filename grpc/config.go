// Package grpc holds the gRPC plumbing shared by the trace collector and its clients:
// tracing stats handlers, error classification and a client constructor.
package grpc

import (
	"encoding/json"
)

type serviceConfig struct {
	MethodConfig []methodConfig `json:"methodConfig"`
}

type methodConfig struct {
	Name        []methodName `json:"name"`
	RetryPolicy retryPolicy  `json:"retryPolicy"`
}

type methodName struct {
	Service string `json:"service"`
}

type retryPolicy struct {
	MaxAttempts          int      `json:"maxAttempts"`
	InitialBackoff       string   `json:"initialBackoff"`
	MaxBackoff           string   `json:"maxBackoff"`
	BackoffMultiplier    float64  `json:"backoffMultiplier"`
	RetryableStatusCodes []string `json:"retryableStatusCodes"`
}

// ServiceConfig returns the JSON service config retrying UNAVAILABLE calls to the named
// services, which are as defined in their .proto files (e.g. "package.ServiceName").
func ServiceConfig(services ...string) string {
	names := make([]methodName, 0, len(services))
	for _, s := range services {
		names = append(names, methodName{Service: s})
	}
	b, err := json.Marshal(serviceConfig{
		MethodConfig: []methodConfig{{
			Name: names,
			RetryPolicy: retryPolicy{
				MaxAttempts:          3,
				InitialBackoff:       "0.05s",
				MaxBackoff:           "0.5s",
				BackoffMultiplier:    1.5,
				RetryableStatusCodes: []string{"UNAVAILABLE"},
			},
		}},
	})
	if err != nil {
		// only fixed types are marshalled
		panic(err)
	}
	return string(b)
}
