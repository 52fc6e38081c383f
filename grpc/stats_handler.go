package grpc

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"

	"github.com/circleci/testservers/o11y"
)

type gRPCContextKey struct{}

type gRPCContext struct {
	messagesReceived int64
	messagesSent     int64
	span             o11y.Span
}

type serverHandler struct {
	provider o11y.Provider
}

// NewServerHandler creates a stats.Handler for a gRPC server, that starts a span
// for every call, joining the caller's trace if the call carries one.
func NewServerHandler(ctx context.Context) stats.Handler {
	return &serverHandler{
		provider: o11y.FromContext(ctx),
	}
}

func (h *serverHandler) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context {
	return o11y.WithProvider(ctx, h.provider)
}

func (h *serverHandler) HandleConn(context.Context, stats.ConnStats) {}

func (h *serverHandler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		ctx = h.provider.Helpers().InjectPropagation(ctx, o11y.PropagationContext{Headers: headers(md)})
	}
	return startRPC(ctx, info, o11y.SpanKindServer)
}

func (h *serverHandler) HandleRPC(ctx context.Context, rs stats.RPCStats) {
	handleRPC(ctx, rs, true)
}

type clientHandler struct{}

// NewClientHandler creates a stats.Handler for a gRPC client, that starts a span for
// every call and propagates the trace to the server.
func NewClientHandler() stats.Handler {
	return clientHandler{}
}

func (h clientHandler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	ctx = startRPC(ctx, info, o11y.SpanKindClient)

	pc := o11y.FromContext(ctx).Helpers().ExtractPropagation(ctx)
	for k, vs := range pc.Headers {
		for _, v := range vs {
			ctx = metadata.AppendToOutgoingContext(ctx, k, v)
		}
	}
	return ctx
}

func (h clientHandler) HandleRPC(ctx context.Context, rs stats.RPCStats) {
	handleRPC(ctx, rs, false)
}

func (h clientHandler) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context {
	return ctx
}

func (h clientHandler) HandleConn(context.Context, stats.ConnStats) {}

func startRPC(ctx context.Context, info *stats.RPCTagInfo, kind o11y.SpanKind) context.Context {
	name, fields := spanName(info.FullMethodName)
	ctx, span := o11y.StartSpan(ctx, name, o11y.WithSpanKind(kind))
	for _, f := range fields {
		span.AddRawField(f.Key, f.Value)
	}
	span.AddRawField(string(semconv.RPCSystemKey), semconv.RPCSystemGRPC.Value.AsString())

	return context.WithValue(ctx, gRPCContextKey{}, &gRPCContext{span: span})
}

func handleRPC(ctx context.Context, rs stats.RPCStats, isServer bool) {
	gctx, _ := ctx.Value(gRPCContextKey{}).(*gRPCContext)
	if gctx == nil {
		return
	}

	switch rs := rs.(type) {
	case *stats.InPayload:
		atomic.AddInt64(&gctx.messagesReceived, 1)
	case *stats.OutPayload:
		atomic.AddInt64(&gctx.messagesSent, 1)
	case *stats.OutHeader:
		if p, ok := peer.FromContext(ctx); ok {
			addPeerAttr(gctx.span, p.Addr.String())
		}
	case *stats.End:
		var err error
		// Prefer the client side context error, so we can differentiate between that and the server
		// responding to us with deadline exceeded or canceled
		switch {
		case ctx.Err() != nil:
			err = &Error{Server: isServer, Err: ctx.Err()}
		case rs.Error != nil:
			err = &Error{Server: isServer, Err: rs.Error}
		}

		// For the span the status code should be the int
		gctx.span.AddRawField(string(semconv.RPCGRPCStatusCodeKey), int(status.Code(rs.Error)))
		gctx.span.AddRawField("rpc.messages_received", atomic.LoadInt64(&gctx.messagesReceived))
		gctx.span.AddRawField("rpc.messages_sent", atomic.LoadInt64(&gctx.messagesSent))
		o11y.End(gctx.span, &err)
	}
}

func addPeerAttr(span o11y.Span, addr string) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return
	}
	span.AddRawField(string(semconv.NetworkPeerAddressKey), host)
	span.AddRawField(string(semconv.NetworkPeerPortKey), port)
}

// headers converts gRPC metadata, which has lower case keys, into canonical http headers.
func headers(md metadata.MD) http.Header {
	h := make(http.Header, len(md))
	for k, vs := range md {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return h
}
